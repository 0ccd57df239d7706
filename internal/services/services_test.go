package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/export"
	"sitepulse/internal/jobs"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

const uploadCSV = `auditName,Lot Details_Lot Number,Title Page_Site conducted_Location,Pre-Settlement Inspection_Kitchen_Benchtop,Pre-Settlement Inspection_Kitchen_Sink,Pre-Settlement Inspection_Entry_Door
12-08-2026/101/Tower A,101,1 River St,✓,leaking tap,✓
12-08-2026/102/Tower A,102,1 River St,chipped,✓,does not latch
`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	return &config.Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}
}

func testUser(username string, role domain.Role) domain.User {
	return domain.User{
		Username: username,
		FullName: "Test " + username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
	}
}

func seedUser(t *testing.T, s *store.Store, username string, role domain.Role) domain.User {
	t.Helper()
	u := testUser(username, role)
	require.NoError(t, s.CreateUser(context.Background(), u, "x"))
	return u
}

// newInspectionService builds the service with a synchronous queue.
func newInspectionService(t *testing.T, s *store.Store) *InspectionService {
	t.Helper()
	svc := NewInspectionService(s, newTestPaths(t), nil, nil)
	queue := jobs.NewQueue(1, svc.Executor(), nil, nil)
	queue.Start(context.Background())
	t.Cleanup(func() { queue.Stop(time.Second) })
	svc.SetQueue(queue)
	return svc
}

func waitForJob(t *testing.T, svc *InspectionService, id string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(id)
		require.NoError(t, err)
		switch job.Status {
		case jobs.StatusCompleted:
			return job
		case jobs.StatusFailed:
			t.Fatalf("job failed: %s", job.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never completed")
	return nil
}

func TestUploadProcessesInspectionEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newInspectionService(t, s)
	inspector := seedUser(t, s, "inspector1", domain.RoleInspector)

	require.NoError(t, s.UpsertMapping(ctx, domain.TradeMapping{
		Room: "Kitchen", Component: "Sink", Trade: "Plumber",
	}, "admin"))

	job, err := svc.Upload(ctx, inspector, "export.csv", strings.NewReader(uploadCSV), "")
	require.NoError(t, err)

	done := waitForJob(t, svc, job.ID)
	require.NotEmpty(t, done.InspectionID)

	insp, err := s.GetInspection(ctx, done.InspectionID)
	require.NoError(t, err)
	assert.Equal(t, "Tower A", insp.BuildingName)
	assert.True(t, insp.IsActive)
	assert.Equal(t, "inspector1", insp.UploadedBy)
	require.NotNil(t, insp.Metrics)
	assert.Equal(t, 2, insp.Metrics.TotalUnits)
	assert.Equal(t, 3, insp.Metrics.TotalDefects)

	defects, err := s.ListDefects(ctx, store.DefectFilter{InspectionID: insp.ID})
	require.NoError(t, err)
	require.Len(t, defects, 3)
	assert.Equal(t, "Plumber", defectByComponent(defects, "Sink").Trade)
	assert.Equal(t, config.UnknownTrade, defectByComponent(defects, "Benchtop").Trade)
}

func defectByComponent(defects []domain.Defect, component string) domain.Defect {
	for _, d := range defects {
		if d.Component == component {
			return d
		}
	}
	return domain.Defect{}
}

func TestUploadRejectsNonCSV(t *testing.T) {
	s := newTestStore(t)
	svc := newInspectionService(t, s)
	inspector := seedUser(t, s, "inspector1", domain.RoleInspector)

	_, err := svc.Upload(context.Background(), inspector, "export.xlsx", strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CSV")
}

func TestExportItemsCSVDownload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newInspectionService(t, s)
	inspector := seedUser(t, s, "inspector1", domain.RoleInspector)
	builder := seedUser(t, s, "builder1", domain.RoleBuilder)

	require.NoError(t, s.CreatePortfolio(ctx, domain.Portfolio{ID: "pf", Name: "PF"}))
	require.NoError(t, s.CreateProject(ctx, domain.Project{ID: "pj", PortfolioID: "pf", Name: "PJ", Status: "active"}))
	require.NoError(t, s.CreateBuilding(ctx, domain.Building{ID: "b1", ProjectID: "pj", Name: "Tower A"}))
	require.NoError(t, s.GrantAccess(ctx, store.AccessGrant{
		Username: "inspector1", ResourceType: "building", ResourceID: "b1", Level: "read",
	}))

	job, err := svc.Upload(ctx, inspector, "export.csv", strings.NewReader(uploadCSV), "")
	require.NoError(t, err)
	done := waitForJob(t, svc, job.ID)

	result, err := svc.ExportItemsCSV(ctx, inspector, done.InspectionID)
	require.NoError(t, err)
	assert.Equal(t, export.MimeCSV, result.MimeType)
	assert.Contains(t, result.Filename, ".csv")

	body := string(result.Data)
	assert.Contains(t, body, "Unit,Unit Type,Room,Component,Trade,Status,Urgency,Is Defect")
	assert.Contains(t, body, "Kitchen,Sink")
	assert.Contains(t, body, "101")

	// Visibility follows the same scoping as the JSON listing.
	_, err = svc.ExportItemsCSV(ctx, builder, done.InspectionID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInspectionVisibilityScoping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newInspectionService(t, s)
	inspector := seedUser(t, s, "inspector1", domain.RoleInspector)
	admin := seedUser(t, s, "admin1", domain.RoleAdmin)
	developer := seedUser(t, s, "developer1", domain.RolePropertyDeveloper)
	builder := seedUser(t, s, "builder1", domain.RoleBuilder)

	job, err := svc.Upload(ctx, inspector, "export.csv", strings.NewReader(uploadCSV), "")
	require.NoError(t, err)
	done := waitForJob(t, svc, job.ID)

	// Admin sees everything.
	all, err := svc.List(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Restricted roles without grants see nothing, developers included.
	for _, u := range []domain.User{developer, builder} {
		none, err := svc.List(ctx, u, true)
		require.NoError(t, err)
		assert.Empty(t, none)
		_, err = svc.Get(ctx, u, done.InspectionID)
		assert.ErrorIs(t, err, ErrForbidden)
	}

	// Grant the builder the building and visibility follows.
	require.NoError(t, s.CreatePortfolio(ctx, domain.Portfolio{ID: "pf", Name: "PF"}))
	require.NoError(t, s.CreateProject(ctx, domain.Project{ID: "pj", PortfolioID: "pf", Name: "PJ", Status: "active"}))
	require.NoError(t, s.CreateBuilding(ctx, domain.Building{ID: "b1", ProjectID: "pj", Name: "Tower A"}))
	require.NoError(t, s.GrantAccess(ctx, store.AccessGrant{
		Username: "builder1", ResourceType: "building", ResourceID: "b1", Level: "read",
	}))

	granted, err := svc.List(ctx, builder, true)
	require.NoError(t, err)
	assert.Len(t, granted, 1)
}

// setupDefects uploads the sample export and registers "Tower A" as
// building "b1" so restricted roles can be granted access to it.
func setupDefects(t *testing.T) (*store.Store, *DefectService, []domain.Defect) {
	t.Helper()
	ctx := context.Background()
	s := newTestStore(t)
	inspSvc := newInspectionService(t, s)
	inspector := seedUser(t, s, "inspector1", domain.RoleInspector)

	require.NoError(t, s.CreatePortfolio(ctx, domain.Portfolio{ID: "pf", Name: "PF"}))
	require.NoError(t, s.CreateProject(ctx, domain.Project{ID: "pj", PortfolioID: "pf", Name: "PJ", Status: "active"}))
	require.NoError(t, s.CreateBuilding(ctx, domain.Building{ID: "b1", ProjectID: "pj", Name: "Tower A"}))

	job, err := inspSvc.Upload(ctx, inspector, "export.csv", strings.NewReader(uploadCSV), "")
	require.NoError(t, err)
	done := waitForJob(t, inspSvc, job.ID)

	defects, err := s.ListDefects(ctx, store.DefectFilter{InspectionID: done.InspectionID})
	require.NoError(t, err)
	require.NotEmpty(t, defects)
	return s, NewDefectService(s, nil, nil), defects
}

func grantBuilding(t *testing.T, s *store.Store, username string) {
	t.Helper()
	require.NoError(t, s.GrantAccess(context.Background(), store.AccessGrant{
		Username: username, ResourceType: "building", ResourceID: "b1", Level: "write",
	}))
}

func TestDefectWorkflowPermissions(t *testing.T) {
	ctx := context.Background()
	s, svc, defects := setupDefects(t)
	pm := seedUser(t, s, "pm1", domain.RoleProjectManager)
	builder := seedUser(t, s, "builder1", domain.RoleBuilder)
	grantBuilding(t, s, "pm1")
	grantBuilding(t, s, "builder1")
	id := defects[0].ID

	// Project manager assigns the defect to the builder.
	assigned, err := svc.Assign(ctx, pm, id, "builder1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefectAssigned, assigned.Status)
	assert.Equal(t, "builder1", assigned.AssignedTo)

	// Builder works it through to completed.
	_, err = svc.UpdateStatus(ctx, builder, id, domain.DefectInProgress, "started")
	require.NoError(t, err)
	completed, err := svc.UpdateStatus(ctx, builder, id, domain.DefectCompleted, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.DefectCompleted, completed.Status)

	// Builder cannot approve.
	_, err = svc.UpdateStatus(ctx, builder, id, domain.DefectApproved, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// Project manager can.
	approved, err := svc.UpdateStatus(ctx, pm, id, domain.DefectApproved, "verified")
	require.NoError(t, err)
	assert.Equal(t, domain.DefectApproved, approved.Status)

	// Approved is terminal.
	_, err = svc.UpdateStatus(ctx, pm, id, domain.DefectOpen, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	history, err := svc.History(ctx, pm, id)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestDefectListScopesBuilderToAssignments(t *testing.T) {
	ctx := context.Background()
	s, svc, defects := setupDefects(t)
	pm := seedUser(t, s, "pm1", domain.RoleProjectManager)
	builder := seedUser(t, s, "builder1", domain.RoleBuilder)
	grantBuilding(t, s, "pm1")
	grantBuilding(t, s, "builder1")

	_, err := svc.Assign(ctx, pm, defects[0].ID, "builder1")
	require.NoError(t, err)

	mine, err := svc.List(ctx, builder, store.DefectFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, defects[0].ID, mine[0].ID)
}

func TestReportServiceGeneratesExcel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	inspSvc := newInspectionService(t, s)
	inspector := seedUser(t, s, "inspector1", domain.RoleInspector)

	require.NoError(t, s.CreatePortfolio(ctx, domain.Portfolio{ID: "pf", Name: "PF"}))
	require.NoError(t, s.CreateProject(ctx, domain.Project{ID: "pj", PortfolioID: "pf", Name: "PJ", Status: "active"}))
	require.NoError(t, s.CreateBuilding(ctx, domain.Building{ID: "b1", ProjectID: "pj", Name: "Tower A"}))
	grantBuilding(t, s, "inspector1")

	job, err := inspSvc.Upload(ctx, inspector, "export.csv", strings.NewReader(uploadCSV), "")
	require.NoError(t, err)
	waitForJob(t, inspSvc, job.ID)

	paths := newTestPaths(t)
	reports := NewReportService(s, paths, nil, nil, nil, nil)
	result, err := reports.Generate(ctx, inspector, "Tower A", export.FormatExcel)
	require.NoError(t, err)
	assert.Equal(t, export.MimeExcel, result.MimeType)
	assert.NotEmpty(t, result.Data)

	// The artifact is archived under the reports directory.
	archived, err := os.ReadFile(filepath.Join(paths.ReportsDir, result.Filename))
	require.NoError(t, err)
	assert.Equal(t, result.Data, archived)
}

func TestReportServiceEnforcesPermissions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reports := NewReportService(s, nil, nil, nil, nil, nil)

	builder := testUser("builder1", domain.RoleBuilder)
	_, err := reports.Generate(ctx, builder, "Tower A", export.FormatExcel)
	assert.ErrorIs(t, err, ErrForbidden)

	// Inspector may generate Excel but not Word.
	inspector := testUser("inspector1", domain.RoleInspector)
	_, err = reports.Generate(ctx, inspector, "Tower A", export.FormatWord)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := testUser("admin", domain.RoleAdmin)
	_, err = reports.Generate(ctx, admin, "Tower A", export.FormatExcel)
	assert.ErrorIs(t, err, ErrNoActiveInspection)

	_, err = reports.Generate(ctx, admin, "Tower A", export.Format("html"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestUserServiceLastAdminGuard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewUserService(s, nil)

	admin := testUser("admin", domain.RoleAdmin)
	require.NoError(t, svc.Create(ctx, admin, admin, "Password1"))

	err := svc.Deactivate(ctx, admin, "admin")
	assert.ErrorIs(t, err, ErrLastAdmin)

	demoted := admin
	demoted.Role = domain.RoleInspector
	err = svc.Update(ctx, admin, demoted)
	assert.ErrorIs(t, err, ErrLastAdmin)

	// With a second admin, deactivation works.
	second := testUser("admin2", domain.RoleAdmin)
	require.NoError(t, svc.Create(ctx, admin, second, "Password1"))
	require.NoError(t, svc.Deactivate(ctx, admin, "admin"))
}

func TestUserServiceChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewUserService(s, nil)
	admin := testUser("admin", domain.RoleAdmin)
	require.NoError(t, svc.Create(ctx, admin, testUser("inspector1", domain.RoleInspector), "Password1"))

	inspector, err := svc.Get(ctx, "inspector1")
	require.NoError(t, err)

	// Wrong current password is rejected.
	err = svc.ChangePassword(ctx, inspector, "inspector1", "wrong", "NewPassword1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, inspector, "inspector1", "Password1", "NewPassword1"))

	hash, _, err := s.GetCredentials(ctx, "inspector1")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(hash, "NewPassword1"))

	// Another non-admin cannot reset someone else's password.
	other := testUser("builder1", domain.RoleBuilder)
	err = svc.ChangePassword(ctx, other, "inspector1", "", "AnotherPass1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestHierarchyServiceCreatesTree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewHierarchyService(s, nil)
	admin := seedUser(t, s, "admin", domain.RoleAdmin)

	pf, err := svc.CreatePortfolio(ctx, admin, domain.Portfolio{Name: "Riverside"})
	require.NoError(t, err)
	require.NotEmpty(t, pf.ID)

	pj, err := svc.CreateProject(ctx, admin, domain.Project{PortfolioID: pf.ID, Name: "Stage 1"})
	require.NoError(t, err)
	assert.Equal(t, "active", pj.Status)

	b, err := svc.CreateBuilding(ctx, admin, domain.Building{ProjectID: pj.ID, Name: "Tower A", TotalUnits: 120})
	require.NoError(t, err)

	buildings, err := svc.ListBuildings(ctx, admin, pj.ID)
	require.NoError(t, err)
	require.Len(t, buildings, 1)
	assert.Equal(t, b.ID, buildings[0].ID)

	// Project under unknown portfolio is refused.
	_, err = svc.CreateProject(ctx, admin, domain.Project{PortfolioID: "missing", Name: "X"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHealthServiceReportsHealthy(t *testing.T) {
	s := newTestStore(t)
	svc := NewHealthService(s, nil, nil, nil)

	status := svc.Check(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["database"])
	require.NoError(t, svc.Ready(context.Background()))
}

func TestMappingCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewMappingService(s, nil)
	admin := testUser("admin", domain.RoleAdmin)

	csvBody := "Trade,Room,Component\nPlumbing,Kitchen,Sink\nCarpentry,Entry,Door\n"
	count, err := svc.ImportCSV(ctx, admin, strings.NewReader(csvBody))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mappings, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	result, err := svc.ExportCSV(ctx)
	require.NoError(t, err)
	assert.Equal(t, export.MimeCSV, result.MimeType)
	body := string(result.Data)
	assert.Contains(t, body, "Room,Component,Trade")
	assert.Contains(t, body, "Kitchen,Sink,Plumbing")
}

func TestMappingImportRejectsBadFiles(t *testing.T) {
	ctx := context.Background()
	svc := NewMappingService(newTestStore(t), nil)
	admin := testUser("admin", domain.RoleAdmin)

	_, err := svc.ImportCSV(ctx, admin, strings.NewReader("Room,Component\nKitchen,Sink\n"))
	assert.ErrorContains(t, err, "Trade column")

	_, err = svc.ImportCSV(ctx, admin, strings.NewReader("Room,Component,Trade\n"))
	assert.ErrorContains(t, err, "no rows")

	_, err = svc.ImportCSV(ctx, admin, strings.NewReader("Room,Component,Trade\nKitchen,,Plumbing\n"))
	assert.ErrorContains(t, err, "required")
}
