package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gradebook_go/config"
	"gradebook_go/models"
	"gradebook_go/services"
	"gradebook_go/store"
	"gradebook_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app     *fiber.App
	store   *store.Store
	admin   string
	teacher string
}

func newServer(t *testing.T, enforceRoles bool) *testServer {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{AppEnv: "test", DBDriver: config.DriverMySQL, StoreMode: config.StoreModeOffline}
	t.Cleanup(func() { config.AppConfig = prev })

	ctx := context.Background()
	st := store.New(store.NewMemoryBackend())
	require.NoError(t, st.Load(ctx))
	_, err := st.SaveClass(ctx, models.Class{ID: "c1", Name: "VII-A"})
	require.NoError(t, err)
	for _, s := range []models.Student{
		{ID: "s1", Name: "Alice", IDNumber: "001", ClassID: "c1"},
		{ID: "s2", Name: "Bob", IDNumber: "002", ClassID: "c1"},
	} {
		_, err := st.SaveStudent(ctx, s)
		require.NoError(t, err)
	}
	_, err = st.SaveSubject(ctx, models.Subject{ID: "math", Name: "Mathematics"})
	require.NoError(t, err)
	for _, c := range []models.Category{{ID: "tugas", Name: "Tugas"}, {ID: "uts", Name: "UTS"}} {
		_, err := st.SaveCategory(ctx, c)
		require.NoError(t, err)
	}

	hashed, err := utils.HashPassword("guru123")
	require.NoError(t, err)
	admins, err := services.NewStaticAdminRepository("admin@school.local", "admin123")
	require.NoError(t, err)
	adminProfile, err := admins.FindByEmail(ctx, "admin@school.local")
	require.NoError(t, err)
	profiles := services.NewStaticProfileRepository(*adminProfile, models.Profile{
		ID: "t1", Email: "teacher@school.local", Password: hashed, Role: models.RoleTeacher, DisplayName: "Bu Sari",
	})
	auth := services.NewAuthService(profiles, services.NewMemoryTokenBlacklist(), "routes-test-secret", time.Hour)
	attendance := services.NewAttendanceService(st)

	// Default (mutable) config: handlers must not keep fiber's request strings.
	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Store:        st,
		Auth:         auth,
		Weights:      services.NewWeightService(st),
		Grades:       services.NewGradeService(st),
		Attendance:   attendance,
		Journals:     services.NewJournalService(st, attendance),
		Imports:      services.NewImportService(st),
		Backups:      services.NewBackupService(st, nil, nil, "smpthhkok"),
		Dashboard:    services.NewDashboardService(st),
		Logs:         services.NewLogArchiveService(nil, nil),
		Health:       services.NewHealthService(st, "", ""),
		MaxFileSize:  1 << 20,
		EnforceRoles: enforceRoles,
	})

	srv := &testServer{app: app, store: st}
	srv.admin = srv.login(t, "admin@school.local", "admin123")
	srv.teacher = srv.login(t, "teacher@school.local", "guru123")
	return srv
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.call(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, body)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// call sends body as JSON and decodes a JSON object response.
func (s *testServer) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	resp := s.do(t, req, token)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestAuthRoutes(t *testing.T) {
	srv := newServer(t, false)

	status, _ := srv.call(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "admin@school.local", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = srv.call(t, http.MethodGet, "/api/classes", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := srv.call(t, http.MethodGet, "/api/profile", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.RoleTeacher, body["role"])
	assert.Equal(t, "Bu Sari", body["display_name"])
	assert.NotEmpty(t, body["hidden_menus"])

	status, body = srv.call(t, http.MethodGet, "/api/auth/session", srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.RoleAdmin, body["role"])

	status, _ = srv.call(t, http.MethodPost, "/api/auth/logout", srv.admin, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = srv.call(t, http.MethodGet, "/api/profile", srv.admin, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRoleEnforcement(t *testing.T) {
	advisory := newServer(t, false)
	status, _ := advisory.call(t, http.MethodGet, "/api/classes", advisory.teacher, nil)
	assert.Equal(t, fiber.StatusOK, status)

	enforced := newServer(t, true)
	status, _ = enforced.call(t, http.MethodGet, "/api/classes", enforced.teacher, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = enforced.call(t, http.MethodGet, "/api/weights/math", enforced.teacher, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = enforced.call(t, http.MethodGet, "/api/system/backup", enforced.teacher, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestMasterDataRoutes(t *testing.T) {
	srv := newServer(t, false)

	status, body := srv.call(t, http.MethodPost, "/api/classes", srv.admin, fiber.Map{"name": " VIII-A "})
	require.Equal(t, fiber.StatusCreated, status, body)
	class := body["class"].(map[string]interface{})
	assert.Equal(t, "VIII-A", class["name"])
	classID := class["id"].(string)
	assert.NotEmpty(t, classID)

	status, _ = srv.call(t, http.MethodPost, "/api/classes", srv.admin, fiber.Map{"name": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = srv.call(t, http.MethodPut, "/api/classes/missing", srv.admin, fiber.Map{"name": "X"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = srv.call(t, http.MethodPost, "/api/students", srv.admin,
		fiber.Map{"name": "Dewi", "id_number": "010", "class_id": classID})
	require.Equal(t, fiber.StatusCreated, status, body)
	student := body["student"].(map[string]interface{})
	assert.Equal(t, "VIII-A", student["class_name"])

	status, body = srv.call(t, http.MethodGet, "/api/students?class_id="+classID, srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["students"], 1)

	status, body = srv.call(t, http.MethodGet, "/api/classes", srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	counts := map[string]float64{}
	for _, raw := range body["classes"].([]interface{}) {
		cl := raw.(map[string]interface{})
		counts[cl["name"].(string)] = cl["student_count"].(float64)
	}
	assert.Equal(t, map[string]float64{"VII-A": 2, "VIII-A": 1}, counts)

	status, _ = srv.call(t, http.MethodDelete, "/api/classes/"+classID, srv.admin, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, body = srv.call(t, http.MethodGet, "/api/students/"+student["id"].(string), srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "-", body["student"].(map[string]interface{})["class_name"])
}

func TestWeightsAndGradeRoutes(t *testing.T) {
	srv := newServer(t, false)

	status, body := srv.call(t, http.MethodPut, "/api/weights/math", srv.teacher,
		fiber.Map{"weights": fiber.Map{"tugas": 50, "uts": 40}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "100")

	status, body = srv.call(t, http.MethodPut, "/api/weights/math", srv.teacher,
		fiber.Map{"weights": fiber.Map{"tugas": 60, "uts": 40}})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 100, body["weights"].(map[string]interface{})["total"])

	status, body = srv.call(t, http.MethodPost, "/api/grades", srv.teacher, fiber.Map{
		"subject_id":  "math",
		"category_id": "tugas",
		"scores":      fiber.Map{"s1": 90, "s2": "70"},
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 2, body["saved"])

	status, body = srv.call(t, http.MethodPost, "/api/grades", srv.teacher, fiber.Map{
		"subject_id":  "math",
		"category_id": "uts",
		"scores":      fiber.Map{"s1": "80", "s2": nil},
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 1, body["saved"])

	status, body = srv.call(t, http.MethodPost, "/api/grades", srv.teacher, fiber.Map{
		"subject_id":  "math",
		"category_id": "uts",
		"scores":      fiber.Map{"s1": "abc"},
	})
	assert.Equal(t, fiber.StatusBadRequest, status, body)

	status, body = srv.call(t, http.MethodGet, "/api/grades?class_id=c1&subject_id=math&category_id=uts", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	rows := body["sheet"].(map[string]interface{})["rows"].([]interface{})
	require.Len(t, rows, 2)

	status, body = srv.call(t, http.MethodGet, "/api/grades/recap?class_id=c1&subject_id=math", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	finals := map[string]interface{}{}
	for _, raw := range body["recap"].(map[string]interface{})["rows"].([]interface{}) {
		row := raw.(map[string]interface{})
		finals[row["student_name"].(string)] = row["final_score"]
		if row["student_name"] == "Alice" {
			assert.Equal(t, "B", row["grade"])
		}
	}
	assert.InDelta(t, 86.0, finals["Alice"], 0.001)
	assert.InDelta(t, 42.0, finals["Bob"], 0.001)

	resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/grades/recap/export?class_id=c1&subject_id=math", nil), srv.teacher)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "rekap_nilai_VII-A_Mathematics.xlsx")

	resp = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/grades/recap/export?class_id=c1&subject_id=math&format=html", nil), srv.teacher)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Alice")

	status, _ = srv.call(t, http.MethodGet, "/api/grades/recap/export?class_id=c1&subject_id=math&format=pdf", srv.teacher, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSavedIDsSurviveLaterRequests(t *testing.T) {
	srv := newServer(t, false)

	status, body := srv.call(t, http.MethodPut, "/api/weights/math", srv.teacher,
		fiber.Map{"weights": fiber.Map{"tugas": 40, "uts": 60}})
	require.Equal(t, fiber.StatusOK, status, body)
	status, body = srv.call(t, http.MethodPut, "/api/classes/c1", srv.admin, fiber.Map{"name": "VII-B"})
	require.Equal(t, fiber.StatusOK, status, body)

	for i := 0; i < 20; i++ {
		srv.call(t, http.MethodGet, "/api/weights/qqqq", srv.teacher, nil)
		srv.call(t, http.MethodGet, "/api/students/zz", srv.admin, nil)
		srv.call(t, http.MethodGet, "/api/classes/xx", srv.admin, nil)
	}

	pct, ok := srv.store.Weight(models.WeightKey{SubjectID: "math", CategoryID: "uts"})
	require.True(t, ok)
	assert.Equal(t, 60, pct)
	assert.Equal(t, map[string]int{"tugas": 40, "uts": 60}, srv.store.Weights("math"))
	assert.Empty(t, srv.store.Weights("qqqq"))

	cl, ok := srv.store.Class("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", cl.ID)
	assert.Equal(t, "VII-B", cl.Name)
	_, ok = srv.store.Class("xx")
	assert.False(t, ok)
}

func TestAttendanceAndJournalRoutes(t *testing.T) {
	srv := newServer(t, false)

	status, body := srv.call(t, http.MethodPost, "/api/attendance/session", srv.teacher, fiber.Map{
		"date":       "2024-03-01",
		"class_id":   "c1",
		"subject_id": "math",
		"records": []fiber.Map{
			{"student_id": "s1", "status": "H"},
			{"student_id": "s2", "status": "S", "remark": "flu"},
		},
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 2, body["saved"])

	status, _ = srv.call(t, http.MethodPost, "/api/attendance/session", srv.teacher, fiber.Map{
		"date": "2024-03-01", "class_id": "c1", "subject_id": "math",
		"records": []fiber.Map{{"student_id": "s1", "status": "X"}},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = srv.call(t, http.MethodGet, "/api/attendance/session?date=2024-03-01&class_id=c1&subject_id=math", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, body["session"], 2)

	status, body = srv.call(t, http.MethodPost, "/api/journals", srv.teacher, fiber.Map{
		"date":       "2024-03-08",
		"class_id":   "c1",
		"subject_id": "math",
		"topic":      "Fractions",
		"attendance": fiber.Map{"s1": "H", "s2": "A"},
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.EqualValues(t, 2, body["attendance_records"])
	journalID := body["journal"].(map[string]interface{})["id"].(string)

	status, body = srv.call(t, http.MethodGet, "/api/attendance/recap?class_id=c1&subject_id=math&start=2024-03-01&end=2024-03-31", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	for _, raw := range body["recap"].(map[string]interface{})["rows"].([]interface{}) {
		row := raw.(map[string]interface{})
		switch row["student_name"] {
		case "Alice":
			assert.EqualValues(t, 100, row["percentage"])
		case "Bob":
			assert.EqualValues(t, 0, row["percentage"])
		}
	}

	resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/attendance/recap/export?class_id=c1&subject_id=math", nil), srv.teacher)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get("Content-Type"))

	status, body = srv.call(t, http.MethodGet, "/api/journals", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["journals"], 1)

	status, _ = srv.call(t, http.MethodDelete, "/api/journals/"+journalID, srv.teacher, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, srv.store.SessionRecords(models.SessionKey{Date: "2024-03-08", ClassID: "c1", SubjectID: "math"}), 2)
}

func TestStudentImportRoute(t *testing.T) {
	srv := newServer(t, false)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "students.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Nama,NIS,Kelas\nEka,020,vii-a\nFajar,021,IX-C\n,022,IX-C\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/students/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp := srv.do(t, req, srv.admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Result services.ImportResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Result.Imported)
	assert.Equal(t, 1, body.Result.Skipped)
	require.Len(t, body.Result.ClassesCreated, 1)
	assert.Equal(t, "IX-C", body.Result.ClassesCreated[0].Name)
	assert.Len(t, srv.store.StudentsInClass("c1"), 3)

	status, body2 := srv.call(t, http.MethodPost, "/api/students/import", srv.admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "file is required", body2["error"])

	resp = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/students/import/template", nil), srv.admin)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get("Content-Type"))
}

func TestSystemRoutes(t *testing.T) {
	srv := newServer(t, false)

	resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/system/backup", nil), srv.admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "backup_nilai_")
	backup, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	status, body := srv.call(t, http.MethodPost, "/api/system/reset", srv.admin, fiber.Map{"keyword": "wrong"})
	assert.Equal(t, fiber.StatusBadRequest, status, body)
	assert.Len(t, srv.store.Students(), 2)

	status, _ = srv.call(t, http.MethodPost, "/api/system/reset", srv.admin, fiber.Map{"keyword": "smpthhkok"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, srv.store.Students())

	req := httptest.NewRequest(http.MethodPost, "/api/system/restore", bytes.NewReader(backup))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp = srv.do(t, req, srv.admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, srv.store.Students(), 2)
	assert.Len(t, srv.store.Categories(), 2)

	req = httptest.NewRequest(http.MethodPost, "/api/system/restore", bytes.NewReader([]byte(`{"nothing":true}`)))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp = srv.do(t, req, srv.admin)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Len(t, srv.store.Students(), 2)

	status, _ = srv.call(t, http.MethodPost, "/api/system/backup/archive", srv.admin, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)

	status, body = srv.call(t, http.MethodGet, "/api/system/backup/archives", srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["archives"])

	status, body = srv.call(t, http.MethodPost, "/api/system/reload", srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["counts"].(map[string]interface{})["students"])
}

func TestDashboardLogsAndHealthRoutes(t *testing.T) {
	srv := newServer(t, false)

	status, body := srv.call(t, http.MethodGet, "/api/dashboard", srv.teacher, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["students"])
	assert.EqualValues(t, 1, stats["classes"])

	status, body = srv.call(t, http.MethodGet, "/api/logs", srv.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["logs"])
	assert.EqualValues(t, 50, body["limit"])

	status, _ = srv.call(t, http.MethodPost, "/api/logs/archive?days=3", srv.admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = srv.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	gradebook := body["gradebook"].(map[string]interface{})
	assert.Equal(t, true, gradebook["loaded"])
	assert.EqualValues(t, 2, gradebook["collections"].(map[string]interface{})["students"])
}
