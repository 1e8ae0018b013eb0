/*
handlers.go - HTTP API handlers for the report-card editor

PURPOSE:
  Exposes the editor engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to the App.

ENDPOINTS:
  Sections:
    GET    /api/state                      Current section, index and state
    GET    /api/sections                   List sections
    POST   /api/sections                   Create and switch to a section
    PUT    /api/sections/current           Switch section
    DELETE /api/sections/{id}              Delete section (confirm)
    POST   /api/sections/current/clear     Erase current section (confirm)
    PUT    /api/grade                      Change working grade

  Students:
    GET    /api/students                   Roster in order
    POST   /api/students                   Add student
    PUT    /api/students/current           Select student
    POST   /api/students/navigate          Previous/next student
    DELETE /api/students                   Delete every student (confirm)
    DELETE /api/students/{name}            Move to trash (confirm)
    DELETE /api/students/{name}/permanent  Delete for good (confirm)
    POST   /api/roster/import              Add names from a spreadsheet

  Record fields:
    PUT    /api/grades | /observations | /attendance | /status
           /final-condition | /student-info | /school-data
    PATCH  /api/settings

  Trash, backup, layout, output, cloud:
    GET    /api/trash, POST /api/trash/{deletedAt}/restore, DELETE /api/trash
    GET    /api/backup, POST /api/backup, POST /api/backup/legacy
    /api/layout/*                          Pointer, key, rect, undo/redo, reset
    GET    /api/overlay, GET /api/grid, GET /api/export (zip)
    GET    /api/sync, POST /api/sync, POST /api/sync/save
    POST   /api/reset                      Factory reset (confirm)

CONCURRENCY:
  The App has one writer. Every /api request runs under Handler.mu.

CONFIRMATION:
  Destructive endpoints require ?confirm=true and answer 428 without it.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown fields
  - 404: Section, student or trash entry not found
  - 409: Duplicate student, last section
  - 428: Missing confirmation
  - 503: Cloud sync not configured or unreachable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: Zip sink for batch export
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/report-engine/app"
	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/cloud"
	"github.com/warp/report-engine/layout"
	"github.com/warp/report-engine/state"
)

// maxUploadBytes bounds backup and roster uploads.
const maxUploadBytes = 16 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	App *app.App

	log      *zap.Logger
	validate *validator.Validate
	mu       sync.Mutex
}

// NewHandler creates a new handler over a.
func NewHandler(a *app.App, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{App: a, log: log, validate: validator.New()}
}

// exclusive serializes requests against the App.
func (h *Handler) exclusive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// SECTION HANDLERS
// =============================================================================

// GetState returns the current section and its state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// ListSections returns every section in creation order.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Index.Sections())
}

// CreateSection adds a section and makes it current.
func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req CreateSectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	sec, err := h.App.Store.CreateSection(r.Context(), req.Name, boletin.Grade(req.Grade), req.Shift)
	if err != nil {
		h.fail(w, "Failed to create section", err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

// SwitchSection makes another section current.
func (h *Handler) SwitchSection(w http.ResponseWriter, r *http.Request) {
	var req SwitchSectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.App.Store.SwitchSection(r.Context(), req.ID); err != nil {
		h.fail(w, "Failed to switch section", err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// DeleteSection removes a section and its document.
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.App.Store.DeleteSection(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "Failed to delete section", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearSection erases the current section's document.
func (h *Handler) ClearSection(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.App.Store.ClearSection(r.Context()); err != nil {
		h.fail(w, "Failed to clear section", err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// SetGrade changes the working grade.
func (h *Handler) SetGrade(w http.ResponseWriter, r *http.Request) {
	var req SetGradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.App.Store.SetGrade(r.Context(), boletin.Grade(req.Grade)); err != nil {
		h.fail(w, "Failed to set grade", err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func (h *Handler) stateResponse() StateResponse {
	sec, _ := h.App.Index.Current()
	return StateResponse{
		Section:  sec,
		Sections: h.App.Index.Sections(),
		State:    h.App.Store.State(),
	}
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns the roster order and the current student.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.studentsResponse())
}

// AddStudent appends an empty student and selects it.
func (h *Handler) AddStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.App.Store.AddStudent(req.Name); err != nil {
		h.fail(w, "Failed to add student", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.studentsResponse())
}

// SelectStudent makes a student current, saving the previous one.
func (h *Handler) SelectStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.hasStudent(req.Name) {
		h.fail(w, "Failed to select student", fmt.Errorf("%w: %s", boletin.ErrStudentNotFound, req.Name))
		return
	}
	h.App.Store.LoadStudent(req.Name, true)
	writeJSON(w, http.StatusOK, h.studentsResponse())
}

// NavigateStudents moves to the previous or next student.
func (h *Handler) NavigateStudents(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.App.Store.Navigate(req.Dir)
	writeJSON(w, http.StatusOK, h.studentsResponse())
}

// TrashStudent moves a student to the trash bin.
func (h *Handler) TrashStudent(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	name := chi.URLParam(r, "name")
	if !h.App.Store.MoveToTrash(name) {
		h.fail(w, "Failed to trash student", fmt.Errorf("%w: %s", boletin.ErrStudentNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, h.studentsResponse())
}

// DeleteStudent removes a student without keeping a trash entry.
func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.App.Store.DeleteStudent(chi.URLParam(r, "name")); err != nil {
		h.fail(w, "Failed to delete student", err)
		return
	}
	writeJSON(w, http.StatusOK, h.studentsResponse())
}

// DeleteAllStudents empties the roster of the current section.
func (h *Handler) DeleteAllStudents(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	h.App.Store.DeleteAllStudents()
	writeJSON(w, http.StatusOK, h.studentsResponse())
}

// ImportRoster adds the names of an uploaded spreadsheet. The workbook is
// either the multipart field "file" or the raw request body.
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var src io.Reader = r.Body
	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file", err)
			return
		}
		defer f.Close()
		src = f
	}

	n, err := h.App.ImportRoster(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read roster", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) hasStudent(name string) bool {
	for _, s := range h.App.Store.Students() {
		if s == name {
			return true
		}
	}
	return false
}

func (h *Handler) studentsResponse() StudentsResponse {
	return StudentsResponse{
		Students: h.App.Store.Students(),
		Current:  h.App.Store.CurrentStudent(),
	}
}

// =============================================================================
// RECORD FIELD HANDLERS
// =============================================================================

// UpdateGrade edits one cell of the subject grid.
func (h *Handler) UpdateGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeCellRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.applied(w, h.App.Store.UpdateGrade(req.SubjectIndex, req.CompetencyIndex, req.Field, req.Value))
}

// UpdateObservation edits one period's observation.
func (h *Handler) UpdateObservation(w http.ResponseWriter, r *http.Request) {
	var req ObservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.applied(w, h.App.Store.UpdateObservation(req.Period, req.Value))
}

// UpdateAttendance edits one attendance cell.
func (h *Handler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.applied(w, h.App.Store.UpdateAttendance(req.Period, req.Field, req.Value))
}

// UpdateStatus edits a promotion flag.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req FieldValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.applied(w, h.App.Store.UpdateStudentStatus(req.Field, req.Value))
}

// UpdateFinalCondition sets the final condition text.
func (h *Handler) UpdateFinalCondition(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.applied(w, h.App.Store.UpdateFinalCondition(req.Value))
}

// UpdateStudentInfo edits a personal data field.
func (h *Handler) UpdateStudentInfo(w http.ResponseWriter, r *http.Request) {
	var req FieldValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.applied(w, h.App.Store.UpdateStudentInfo(req.Field, req.Value))
}

// UpdateSchoolData edits a school field of the current section.
func (h *Handler) UpdateSchoolData(w http.ResponseWriter, r *http.Request) {
	var req FieldValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	ok, err := h.App.Store.UpdateSchoolData(r.Context(), req.Field, req.Value)
	if err != nil {
		h.fail(w, "Failed to update school data", err)
		return
	}
	h.applied(w, ok)
}

// UpdateSettings merges a settings patch.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch state.SettingsPatch
	if !h.decode(w, r, &patch) {
		return
	}
	h.App.Store.UpdateSettings(patch)
	writeJSON(w, http.StatusOK, h.App.Store.State().Settings)
}

// applied answers with the new state, or 400 when the store rejected the
// edit as addressing an unknown field or index.
func (h *Handler) applied(w http.ResponseWriter, ok bool) {
	if !ok {
		writeError(w, http.StatusBadRequest, "Edit rejected", errors.New("unknown field, index or value"))
		return
	}
	writeJSON(w, http.StatusOK, h.App.Store.State())
}

// =============================================================================
// TRASH HANDLERS
// =============================================================================

// ListTrash returns the trash bin of the current section.
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Store.Trash())
}

// RestoreTrash brings a trashed student back into the roster.
func (h *Handler) RestoreTrash(w http.ResponseWriter, r *http.Request) {
	key, err := strconv.ParseInt(chi.URLParam(r, "deletedAt"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid trash key", err)
		return
	}
	name, ok := h.App.Store.RestoreFromTrash(key)
	if !ok {
		h.fail(w, "Failed to restore student", fmt.Errorf("%w: %d", boletin.ErrTrashItemNotFound, key))
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Name: name})
}

// EmptyTrash drops every trash entry.
func (h *Handler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	h.App.Store.EmptyTrash()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BACKUP HANDLERS
// =============================================================================

// ExportBackup returns every section as one backup document.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.App.Store.ExportFullBackup(r.Context())
	if err != nil {
		h.fail(w, "Failed to export backup", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="boletin-backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}

// ImportBackup replaces local data with an uploaded backup, current or
// legacy shape.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read backup", err)
		return
	}
	if err := h.App.Store.ImportFullBackup(r.Context(), raw); err != nil {
		h.fail(w, "Failed to import backup", err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// MigrateLegacy imports the stored legacy document, if any.
func (h *Handler) MigrateLegacy(w http.ResponseWriter, r *http.Request) {
	if err := h.App.Store.PerformLegacyMigration(r.Context()); err != nil {
		h.fail(w, "Failed to migrate legacy data", err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// =============================================================================
// LAYOUT HANDLERS
// =============================================================================

// GetLayout describes the layout engine.
func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.layoutResponse())
}

// PointerEvent feeds a pointer event to the layout engine. The phase is
// down, move or up.
func (h *Handler) PointerEvent(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := layout.Pointer{X: req.X, Y: req.Y, Target: req.Target}
	var handled bool
	switch chi.URLParam(r, "phase") {
	case "down":
		handled = h.App.Layout.PointerDown(p)
	case "move":
		handled = h.App.Layout.PointerMove(p)
	case "up":
		handled = h.App.Layout.PointerUp(p)
	default:
		writeError(w, http.StatusNotFound, "Unknown pointer phase", nil)
		return
	}
	writeJSON(w, http.StatusOK, HandledResponse{Handled: handled})
}

// KeyEvent feeds a keyboard event to the layout engine.
func (h *Handler) KeyEvent(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	handled := h.App.Layout.HandleKey(layout.Key{Key: req.Key, Ctrl: req.Ctrl, Meta: req.Meta})
	writeJSON(w, http.StatusOK, HandledResponse{Handled: handled})
}

// SetFieldRect places one field as an undoable action.
func (h *Handler) SetFieldRect(w http.ResponseWriter, r *http.Request) {
	var req RectRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	rect := boletin.Rect{Left: req.Left, Top: req.Top, Width: req.Width, Height: req.Height}
	if _, ok := h.App.Canvas.Get(id); !ok {
		writeError(w, http.StatusNotFound, "Field not found", fmt.Errorf("field %q", id))
		return
	}
	if !h.App.Layout.SetRect(id, rect) {
		writeError(w, http.StatusBadRequest, "Invalid rect", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.layoutResponse())
}

// Undo reverts the last layout change.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HandledResponse{Handled: h.App.Layout.Undo()})
}

// Redo reapplies the last undone layout change.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HandledResponse{Handled: h.App.Layout.Redo()})
}

// ResetLayout puts every field of the current grade back at its default.
func (h *Handler) ResetLayout(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.App.ResetPositions(r.Context()); err != nil {
		h.fail(w, "Failed to reset layout", err)
		return
	}
	writeJSON(w, http.StatusOK, h.layoutResponse())
}

func (h *Handler) layoutResponse() LayoutResponse {
	undo, redo := h.App.Layout.HistoryLen()
	dragging, _ := h.App.Layout.Dragging()
	return LayoutResponse{
		Grade:    h.App.Layout.Grade(),
		EditMode: h.App.Layout.EditMode(),
		Dragging: dragging,
		Undo:     undo,
		Redo:     redo,
		Layout:   h.App.Layout.Capture(),
	}
}

// =============================================================================
// OUTPUT HANDLERS
// =============================================================================

// GetOverlay returns the positioned overlay fields.
func (h *Handler) GetOverlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OverlayResponse{
		OverlayMode: h.App.Canvas.OverlayMode(),
		Fields:      h.App.Canvas.Fields(),
	})
}

// GetGrid returns the tabular entry form of the current student.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Grid())
}

// Export streams every student of the current section as a zip of JSON
// pages. A cancelled request stops between students.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="boletines.zip"`)
	w.WriteHeader(http.StatusOK)

	sink := newZipSink(w)
	n, err := h.App.Export(r.Context(), sink)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		h.log.Warn("export incomplete", zap.Int("written", n), zap.Error(err))
		return
	}
	h.log.Info("export finished", zap.Int("written", n))
}

// =============================================================================
// CLOUD HANDLERS
// =============================================================================

// SyncStatus returns the last sync report.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if !h.cloudEnabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Report: h.App.Syncer.Report()})
}

// Sync reconciles local data with the cloud copy.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.cloudEnabled(w) {
		return
	}
	decision, err := h.App.Syncer.Sync(r.Context())
	if err != nil {
		h.fail(w, "Sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Decision: decision, Report: h.App.Syncer.Report()})
}

// SaveToCloud pushes local data. ?mode=snapshot also keeps a dated copy.
func (h *Handler) SaveToCloud(w http.ResponseWriter, r *http.Request) {
	if !h.cloudEnabled(w) {
		return
	}
	mode := cloud.SaveAuto
	if r.URL.Query().Get("mode") == string(cloud.SaveSnapshot) {
		mode = cloud.SaveSnapshot
	}
	id, err := h.App.Syncer.Push(r.Context(), mode)
	if err != nil {
		h.fail(w, "Cloud save failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Decision: cloud.DecisionPush, ID: id, Report: h.App.Syncer.Report()})
}

func (h *Handler) cloudEnabled(w http.ResponseWriter) bool {
	if h.App.Syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "Cloud sync is not configured", nil)
		return false
	}
	return true
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// FactoryReset wipes local data and starts over.
func (h *Handler) FactoryReset(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}
	if err := h.App.FactoryReset(r.Context()); err != nil {
		h.fail(w, "Failed to reset", err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// confirmed answers 428 unless the request carries ?confirm=true.
func confirmed(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") == "true" {
		return true
	}
	writeError(w, http.StatusPreconditionRequired, "Confirmation required", errors.New("repeat with ?confirm=true"))
	return false
}

// fail maps a domain error to its status code.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case boletin.IsNotFound(err):
		return http.StatusNotFound
	case boletin.IsClientError(err):
		return http.StatusBadRequest
	case boletin.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, cloud.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, cloud.ErrBackupTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
