package config

import "time"

// Application constants for the SitePulse inspection platform.
const (
	// Application Info
	AppName   = "SitePulse"
	AppVendor = "SitePulse Building Services"

	// Security
	MaxLoginAttempts   = 5
	LoginBlockDuration = 15 * time.Minute
	SessionTimeout     = 8 * time.Hour
	SessionTokenBytes  = 32
	BcryptCost         = 12
	MinPasswordLength  = 8

	// Session cookie
	SessionCookieName = "sitepulse_session"

	// Rate limiting
	DefaultRateLimit = 50 // requests per second
	DefaultBurstSize = 25

	// Settlement readiness thresholds (defects per unit)
	ReadyMaxDefects     = 2
	MinorWorkMaxDefects = 7
	MajorWorkMaxDefects = 15

	// Report generation
	ReportTimezone   = "Australia/Melbourne"
	ReportTimeFormat = "20060102_150405"
	PandocTimeout    = 60 * time.Second
	ChromePDFTimeout = 30 * time.Second
	TopProblemTrades = 5

	// Planned-work lookahead windows
	PlannedWorkShortWindow = 14 * 24 * time.Hour
	PlannedWorkLongWindow  = 30 * 24 * time.Hour

	// Upload handling
	UploadFieldName = "file"
	MaxUploadBytes  = 64 << 20
	MaxCSVColumns   = 4096

	// iAuditor export schema
	InspectionColumnPrefix = "Pre-Settlement Inspection_"
	NotesColumnSuffix      = "_notes"
	LotNumberColumn        = "Lot Details_Lot Number"
	TitleLotNumberColumn   = "Title Page_Lot number"
	AuditNameColumn        = "auditName"
	LocationColumn         = "Title Page_Site conducted_Location"
	AreaColumn             = "Title Page_Site conducted_Area"
	RegionColumn           = "Title Page_Site conducted_Region"

	// Trade assigned when no mapping matches
	UnknownTrade = "Unknown Trade"

	// Default paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultUploadsDir = "data/uploads"
	DefaultReportsDir = "data/reports"
	DefaultLogsDir    = "logs"
)
