package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"title": "standup"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := parseResponse(t, w)
	if resp["success"] != true {
		t.Errorf("expected success=true, got %v", resp["success"])
	}
	data, ok := resp["data"].(map[string]interface{})
	if !ok || data["title"] != "standup" {
		t.Errorf("unexpected data: %v", resp["data"])
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 1})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if resp := parseResponse(t, w); resp["success"] != true {
		t.Error("expected success=true")
	}
}

func TestMessage(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Message(c, "meeting deleted successfully")
	})

	resp := parseResponse(t, w)
	if resp["message"] != "meeting deleted successfully" {
		t.Errorf("unexpected message %v", resp["message"])
	}
	if _, ok := resp["data"]; ok {
		t.Error("data should be omitted")
	}
}

func TestError_TaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		kind   Kind
	}{
		{"validation", NewBadRequest("title is required"), http.StatusBadRequest, KindValidation},
		{"authentication", NewUnauthorized("invalid credentials"), http.StatusUnauthorized, KindAuthentication},
		{"authorization", NewForbidden("only the organizer may edit"), http.StatusForbidden, KindAuthorization},
		{"not found", NewNotFound("meeting not found"), http.StatusNotFound, KindNotFound},
		{"conflict", NewConflict("window is blocked", nil), http.StatusConflict, KindConflict},
		{"persistence", NewServerError("failed to create meeting", errors.New("disk full")), http.StatusInternalServerError, KindPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) {
				Error(c, tt.err)
			})
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			resp := parseResponse(t, w)
			if resp["success"] != false {
				t.Error("expected success=false")
			}
			if !IsKind(tt.err, tt.kind) {
				t.Errorf("IsKind(%v) = false", tt.kind)
			}
		})
	}
}

func TestError_HidesCauseOutsideDebug(t *testing.T) {
	err := NewServerError("failed to create meeting", errors.New("UNIQUE constraint failed"))

	w := performRequest(func(c *gin.Context) {
		Error(c, err)
	})

	resp := parseResponse(t, w)
	msg, _ := resp["message"].(string)
	if strings.Contains(msg, "UNIQUE") {
		t.Errorf("cause leaked outside debug mode: %q", msg)
	}
	if msg != "failed to create meeting" {
		t.Errorf("message = %q", msg)
	}
}

func TestError_ShowsCauseInDebug(t *testing.T) {
	gin.SetMode(gin.DebugMode)
	defer gin.SetMode(gin.TestMode)

	w := performRequest(func(c *gin.Context) {
		Error(c, NewServerError("failed to create meeting", errors.New("connection refused")))
	})

	resp := parseResponse(t, w)
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "connection refused") {
		t.Errorf("expected cause in debug message, got %q", msg)
	}
}

func TestError_PlainErrorIsOpaque500(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("boom"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	resp := parseResponse(t, w)
	if resp["message"] != "internal server error" {
		t.Errorf("message = %v", resp["message"])
	}
}

func TestError_WrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("respond: %w", NewForbidden("not a participant"))

	w := performRequest(func(c *gin.Context) {
		Error(c, wrapped)
	})

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestError_ConflictCarriesDetails(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, NewConflict("window is blocked", []string{"unavailable_day"}))
	})

	resp := parseResponse(t, w)
	details, ok := resp["data"].([]interface{})
	if !ok || len(details) != 1 {
		t.Errorf("expected conflict details in data, got %v", resp["data"])
	}
}

func TestAbortHelpers(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		AbortUnauthorized(c, "not authorized, no token")
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	w = performRequest(func(c *gin.Context) {
		AbortForbidden(c, "forbidden")
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}
