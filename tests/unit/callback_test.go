package unit_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openlms/docsubmit/internal/doctoken"
	"github.com/openlms/docsubmit/internal/models"
	"github.com/openlms/docsubmit/internal/templatekey"
	"github.com/openlms/docsubmit/tests/helpers"
)

// postCallback sends a callback POST and decodes the {error: N} response.
func postCallback(t *testing.T, ta *helpers.TestApp, docToken string, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal callback body: %v", err)
	}
	req := httptest.NewRequest("POST", "/callback?doc="+docToken, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.App.Test(req, 10000)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	var result map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

// TestCallbackEditingNoWrite verifies that an EDITING status acknowledges
// success without touching storage.
func TestCallbackEditingNoWrite(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)
	file, err := ta.Files.Create(t.Context(), 3, sub.SubmissionID, "docx", owner.UserID, "en")
	if err != nil {
		t.Fatalf("Failed to seed submission file: %v", err)
	}
	before, err := ta.Files.Content(t.Context(), file)
	if err != nil {
		t.Fatalf("Failed to read seeded content: %v", err)
	}

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: owner.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{"status": 1})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0, got %v", result["error"])
	}

	after, err := ta.Files.Content(t.Context(), file)
	if err != nil {
		t.Fatalf("Failed to re-read content: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("EDITING callback must not modify stored content")
	}

	var count int64
	db.Model(&models.CallbackEvent{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no audit rows for EDITING, got %d", count)
	}
}

// TestCallbackMustSavePersists verifies the full save path: content replaced
// from the supplied URL and the delivery recorded.
func TestCallbackMustSavePersists(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)
	file, err := ta.Files.Create(t.Context(), 3, sub.SubmissionID, "docx", owner.UserID, "en")
	if err != nil {
		t.Fatalf("Failed to seed submission file: %v", err)
	}

	updated := []byte("PK updated document bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(updated)
	}))
	defer srv.Close()

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: owner.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"url":    srv.URL + "/doc.docx",
		"users":  []string{fmt.Sprintf("%d", owner.UserID)},
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0, got %v", result["error"])
	}

	file, err = ta.Files.Get(t.Context(), 3, sub.SubmissionID)
	if err != nil || file == nil {
		t.Fatalf("Failed to re-fetch submission file: %v", err)
	}
	after, err := ta.Files.Content(t.Context(), file)
	if err != nil {
		t.Fatalf("Failed to re-read content: %v", err)
	}
	if !bytes.Equal(after, updated) {
		t.Error("Expected stored content replaced with fetched bytes")
	}

	var events []models.CallbackEvent
	db.Find(&events)
	if len(events) != 1 {
		t.Fatalf("Expected one audit row, got %d", len(events))
	}
	if events[0].Status != 2 || events[0].ItemID != sub.SubmissionID {
		t.Errorf("Audit row mismatch: %+v", events[0])
	}
}

// TestCallbackUnknownStatus verifies unrecognized statuses produce a
// business failure, still over HTTP 200.
func TestCallbackUnknownStatus(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: owner.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{"status": 7})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(1) {
		t.Errorf("Expected error 1, got %v", result["error"])
	}
}

// TestCallbackBadToken verifies an unparseable doc token is rejected with a
// bare 403 before any processing.
func TestCallbackBadToken(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	status, result := postCallback(t, ta, "not-a-token", map[string]interface{}{"status": 2})
	if status != 403 {
		t.Errorf("Expected status 403, got %d", status)
	}
	if len(result) != 0 {
		t.Errorf("Expected no JSON envelope on a bad handle, got %v", result)
	}
}

// TestCallbackWrongAction verifies a download handle is not accepted by the
// callback endpoint.
func TestCallbackWrongAction(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionDownload, ContextID: 3, ItemID: 1,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, _ := postCallback(t, ta, token, map[string]interface{}{"status": 2})
	if status != 400 {
		t.Errorf("Expected status 400, got %d", status)
	}
}

// TestCallbackVerifiedPayloadAuthoritative verifies that with a shared
// secret configured, the values inside the verified token win over the raw
// body.
func TestCallbackVerifiedPayloadAuthoritative(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	cfg.DocServerSecret = "shared-secret"
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)
	file, err := ta.Files.Create(t.Context(), 3, sub.SubmissionID, "docx", owner.UserID, "en")
	if err != nil {
		t.Fatalf("Failed to seed submission file: %v", err)
	}

	updated := []byte("PK verified save bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(updated)
	}))
	defer srv.Close()

	signed, err := ta.Server.Sign(map[string]interface{}{
		"status": 2,
		"url":    srv.URL + "/doc.docx",
		"users":  []string{fmt.Sprintf("%d", owner.UserID)},
	})
	if err != nil {
		t.Fatalf("Failed to sign payload: %v", err)
	}

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: owner.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	// Raw body claims a no-op status; the signed token says save. The save
	// must win.
	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 4,
		"token":  signed,
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0, got %v", result["error"])
	}

	file, err = ta.Files.Get(t.Context(), 3, sub.SubmissionID)
	if err != nil || file == nil {
		t.Fatalf("Failed to re-fetch submission file: %v", err)
	}
	after, err := ta.Files.Content(t.Context(), file)
	if err != nil {
		t.Fatalf("Failed to re-read content: %v", err)
	}
	if !bytes.Equal(after, updated) {
		t.Error("Expected verified payload's save to be applied")
	}
}

// TestCallbackAuthFailure verifies the business-visible denial shape when
// neither the body token nor the bearer header verifies.
func TestCallbackAuthFailure(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	cfg.DocServerSecret = "shared-secret"
	ta := helpers.BuildTestApp(t, db, cfg)

	attacker := doctoken.New("wrong-secret")
	forged, err := attacker.Sign(map[string]interface{}{"status": 2})
	if err != nil {
		t.Fatalf("Failed to sign forged payload: %v", err)
	}

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: 1, UserID: 1,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"token":  forged,
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["status"] != "error" {
		t.Errorf("Expected status error, got %v", result["status"])
	}
	if result["error"] != "403 Access denied" {
		t.Errorf("Expected 403 Access denied, got %v", result["error"])
	}
}

// TestCallbackStrangerDenied verifies a user without edit capability on the
// submission cannot drive a save.
func TestCallbackStrangerDenied(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	stranger := helpers.CreateTestUser(t, db, "Student Two", "student2@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: stranger.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, _ := postCallback(t, ta, token, map[string]interface{}{"status": 2})
	if status != 403 {
		t.Errorf("Expected status 403, got %d", status)
	}
}

// TestCallbackGroupMemberAllowed verifies a group member can save a group
// submission they do not own.
func TestCallbackGroupMemberAllowed(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	member := helpers.CreateTestUser(t, db, "Student Two", "student2@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 42)
	if err := db.Create(&models.GroupMember{GroupID: 42, UserID: member.UserID}).Error; err != nil {
		t.Fatalf("Failed to add group member: %v", err)
	}
	if _, err := ta.Files.Create(t.Context(), 3, sub.SubmissionID, "docx", owner.UserID, "en"); err != nil {
		t.Fatalf("Failed to seed submission file: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK group save"))
	}))
	defer srv.Close()

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: member.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"url":    srv.URL + "/doc.docx",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0, got %v", result["error"])
	}
}

// TestCallbackTemplateConversionFailure verifies a failed form conversion
// is non-fatal: the callback still succeeds and no initial file appears.
func TestCallbackTemplateConversionFailure(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)

	var convertCalls int32
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coauthoring/CommandService.ashx":
			w.Write([]byte(`{"error":0,"version":"8.0.0"}`))
		case "/ConvertService.ashx":
			atomic.AddInt32(&convertCalls, 1)
			w.Write([]byte(`{"error":-3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer docServer.Close()
	cfg.DocServerURL = docServer.URL

	ta := helpers.BuildTestApp(t, db, cfg)

	manager := helpers.CreateTestUser(t, db, "Teacher One", "teacher1@example.com")
	helpers.AssignRole(t, db, manager.UserID, 5, models.RoleManager)
	if err := templatekey.Register(db, 5, "tkey123"); err != nil {
		t.Fatalf("Failed to register template key: %v", err)
	}
	if _, err := ta.Files.CreateTemplate(t.Context(), 5, "docxf", manager.UserID, "en"); err != nil {
		t.Fatalf("Failed to seed template: %v", err)
	}

	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK saved form template"))
	}))
	defer content.Close()

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, TemplateKey: "tkey123", UserID: manager.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"url":    content.URL + "/template.docxf",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0 despite conversion failure, got %v", result["error"])
	}

	if calls := atomic.LoadInt32(&convertCalls); calls != 1 {
		t.Errorf("Expected one conversion attempt, got %d", calls)
	}

	initial, err := ta.Files.GetInitial(t.Context(), 5)
	if err != nil {
		t.Fatalf("Failed to query initial file: %v", err)
	}
	if initial != nil {
		t.Error("Expected no initial file after failed conversion")
	}
}

// TestCallbackTemplateCopyToInitial verifies a non-form template save copies
// the written file straight into the initial area.
func TestCallbackTemplateCopyToInitial(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	manager := helpers.CreateTestUser(t, db, "Teacher One", "teacher1@example.com")
	helpers.AssignRole(t, db, manager.UserID, 5, models.RoleManager)
	if err := templatekey.Register(db, 5, "tkey456"); err != nil {
		t.Fatalf("Failed to register template key: %v", err)
	}
	if _, err := ta.Files.CreateTemplate(t.Context(), 5, "docx", manager.UserID, "en"); err != nil {
		t.Fatalf("Failed to seed template: %v", err)
	}

	saved := []byte("PK plain template bytes")
	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(saved)
	}))
	defer content.Close()

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, TemplateKey: "tkey456", UserID: manager.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"url":    content.URL + "/template.docx",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0, got %v", result["error"])
	}

	initial, err := ta.Files.GetInitial(t.Context(), 5)
	if err != nil {
		t.Fatalf("Failed to query initial file: %v", err)
	}
	if initial == nil {
		t.Fatal("Expected initial file after non-form template save")
	}
	got, err := ta.Files.Content(t.Context(), initial)
	if err != nil {
		t.Fatalf("Failed to read initial content: %v", err)
	}
	if !bytes.Equal(got, saved) {
		t.Error("Expected initial content to match the saved template")
	}
}

// TestCallbackUnresolvableContext verifies a template handle whose key has
// no registry record yields a 400.
func TestCallbackUnresolvableContext(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	user := helpers.CreateTestUser(t, db, "Teacher One", "teacher1@example.com")

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, TemplateKey: "unregistered", UserID: user.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, _ := postCallback(t, ta, token, map[string]interface{}{"status": 2})
	if status != 400 {
		t.Errorf("Expected status 400, got %d", status)
	}
}

// TestCallbackSubmissionFormConversion verifies a saved form-container
// submission triggers the fillable-rendition conversion, not just templates.
func TestCallbackSubmissionFormConversion(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)

	var convertCalls int32
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coauthoring/CommandService.ashx":
			w.Write([]byte(`{"error":0,"version":"7.5.0"}`))
		case "/ConvertService.ashx":
			atomic.AddInt32(&convertCalls, 1)
			fmt.Fprintf(w, `{"error":0,"fileUrl":%q}`, "http://"+r.Host+"/result.oform")
		case "/result.oform":
			w.Write([]byte("PK converted form"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer docServer.Close()
	cfg.DocServerURL = docServer.URL

	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)
	if _, err := ta.Files.Create(t.Context(), 3, sub.SubmissionID, "docxf", owner.UserID, "en"); err != nil {
		t.Fatalf("Failed to seed submission file: %v", err)
	}

	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK saved form"))
	}))
	defer content.Close()

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: owner.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, result := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"url":    content.URL + "/form.docxf",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if result["error"] != float64(0) {
		t.Errorf("Expected error 0, got %v", result["error"])
	}

	if calls := atomic.LoadInt32(&convertCalls); calls != 1 {
		t.Errorf("Expected one conversion call for a docxf submission save, got %d", calls)
	}

	initial, err := ta.Files.GetInitial(t.Context(), 3)
	if err != nil {
		t.Fatalf("Failed to query initial file: %v", err)
	}
	if initial == nil {
		t.Fatal("Expected a fillable rendition after a docxf submission save")
	}
	got, err := ta.Files.Content(t.Context(), initial)
	if err != nil {
		t.Fatalf("Failed to read initial content: %v", err)
	}
	if !bytes.Equal(got, []byte("PK converted form")) {
		t.Error("Expected initial content to match the conversion result")
	}
}

// TestCallbackMissingSubmissionFile verifies a save callback for a
// submission with no stored file is a 404, not a silent re-create.
func TestCallbackMissingSubmissionFile(t *testing.T) {
	db := helpers.NewTestDB(t)
	cfg := helpers.TestAppConfig(t)
	ta := helpers.BuildTestApp(t, db, cfg)

	owner := helpers.CreateTestUser(t, db, "Student One", "student1@example.com")
	sub := helpers.CreateTestSubmission(t, db, 3, owner.UserID, 0)

	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK orphaned save"))
	}))
	defer content.Close()

	token, err := ta.Handles.Encode(doctoken.Handle{
		Action: doctoken.ActionTrack, ContextID: 3, ItemID: sub.SubmissionID, UserID: owner.UserID,
	})
	if err != nil {
		t.Fatalf("Failed to encode handle: %v", err)
	}

	status, _ := postCallback(t, ta, token, map[string]interface{}{
		"status": 2,
		"url":    content.URL + "/orphan.docx",
	})
	if status != 404 {
		t.Errorf("Expected status 404, got %d", status)
	}

	file, err := ta.Files.Get(t.Context(), 3, sub.SubmissionID)
	if err != nil {
		t.Fatalf("Failed to query submission file: %v", err)
	}
	if file != nil {
		t.Error("Expected no submission file to be materialized by the callback")
	}
}
