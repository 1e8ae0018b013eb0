/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines request and response structures for the REST API.
  Keeps the store's internal types decoupled from the wire format.

NAMING CONVENTION:
  - *Request: Incoming request bodies
  - *Response: Outgoing response bodies

VALIDATION:
  Request structs carry go-playground/validator tags. decode() checks them
  and answers 400 with the failing fields in Details.

SEE ALSO:
  - handlers.go: Uses these DTOs
  - boletin/types.go: Domain types
*/
package api

import (
	"github.com/warp/report-engine/boletin"
	"github.com/warp/report-engine/cloud"
	"github.com/warp/report-engine/overlay"
)

// =============================================================================
// SECTION DTOs
// =============================================================================

// CreateSectionRequest is the body of POST /api/sections.
type CreateSectionRequest struct {
	Name  string `json:"name" validate:"max=80"`
	Grade int    `json:"grade" validate:"required,min=1,max=6"`
	Shift string `json:"shift" validate:"max=40"`
}

// SwitchSectionRequest is the body of PUT /api/sections/current.
type SwitchSectionRequest struct {
	ID string `json:"id" validate:"required"`
}

// SetGradeRequest is the body of PUT /api/grade.
type SetGradeRequest struct {
	Grade int `json:"grade" validate:"required,min=1,max=6"`
}

// StateResponse is the current section with its state.
type StateResponse struct {
	Section  boletin.Section      `json:"section"`
	Sections []boletin.Section    `json:"sections"`
	State    boletin.SectionState `json:"state"`
}

// =============================================================================
// STUDENT DTOs
// =============================================================================

// StudentRequest names one student.
type StudentRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// NavigateRequest moves to the previous (-1) or next (1) student.
type NavigateRequest struct {
	Dir int `json:"dir" validate:"oneof=-1 1"`
}

// StudentsResponse lists the roster in order.
type StudentsResponse struct {
	Students []string `json:"students"`
	Current  string   `json:"current"`
}

// CountResponse reports how many items an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

// RestoreResponse names the student a trash entry came back as.
type RestoreResponse struct {
	Name string `json:"name"`
}

// =============================================================================
// FIELD EDIT DTOs
// =============================================================================

// GradeCellRequest edits one cell of the subject grid. CompetencyIndex -1
// addresses the subject itself.
type GradeCellRequest struct {
	SubjectIndex    int    `json:"sIndex" validate:"min=0"`
	CompetencyIndex int    `json:"cIndex" validate:"min=-1,max=2"`
	Field           string `json:"field" validate:"required"`
	Value           string `json:"value"`
}

// ObservationRequest edits one period's observation.
type ObservationRequest struct {
	Period string `json:"period" validate:"required,oneof=p1 p2 p3 p4"`
	Value  string `json:"value"`
}

// AttendanceRequest edits one attendance cell.
type AttendanceRequest struct {
	Period string `json:"period" validate:"required,oneof=p1 p2 p3 p4 total"`
	Field  string `json:"field" validate:"required,oneof=pres abs perc perc_abs"`
	Value  string `json:"value"`
}

// FieldValueRequest edits a named field of a flat record.
type FieldValueRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

// ValueRequest carries a single value.
type ValueRequest struct {
	Value string `json:"value"`
}

// =============================================================================
// LAYOUT DTOs
// =============================================================================

// PointerRequest is one pointer event.
type PointerRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Target string  `json:"target"`
}

// KeyRequest is one keyboard event.
type KeyRequest struct {
	Key  string `json:"key" validate:"required"`
	Ctrl bool   `json:"ctrl"`
	Meta bool   `json:"meta"`
}

// RectRequest places one field. Values are CSS lengths such as "120px".
type RectRequest struct {
	Left   string `json:"left" validate:"required"`
	Top    string `json:"top" validate:"required"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// LayoutResponse describes the layout engine.
type LayoutResponse struct {
	Grade    boletin.Grade  `json:"grade"`
	EditMode bool           `json:"editMode"`
	Dragging string         `json:"dragging,omitempty"`
	Undo     int            `json:"undo"`
	Redo     int            `json:"redo"`
	Layout   boletin.Layout `json:"layout"`
}

// HandledResponse reports whether an event was consumed.
type HandledResponse struct {
	Handled bool `json:"handled"`
}

// OverlayResponse lists the positioned overlay fields.
type OverlayResponse struct {
	OverlayMode bool            `json:"overlayMode"`
	Fields      []overlay.Field `json:"fields"`
}

// =============================================================================
// SYNC DTOs
// =============================================================================

// SyncResponse is the outcome of a sync or push.
type SyncResponse struct {
	Decision cloud.Decision `json:"decision,omitempty"`
	ID       string         `json:"id,omitempty"`
	Report   cloud.Report   `json:"report"`
}

// =============================================================================
// ERROR DTOs
// =============================================================================

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
