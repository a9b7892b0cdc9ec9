package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/models"
)

// profileCollection is the collection whose single record is the tenant's
// Profile; its record id equals the tenant id.
const profileCollection = "profile"

var validCollections = map[string]bool{
	profileCollection: true,
	"rewards":         true,
	"campaigns":       true,
	"customers":       true,
}

// recordEnvelope is the slice of the client payload the server needs for
// version ordering; the payload itself stays opaque.
type recordEnvelope struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) getTenantProfile(c echo.Context) error {
	tenantID := c.Param("tenant")

	rec, err := s.records.Get(c.Request().Context(), tenantID, profileCollection, tenantID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		s.log.Error(c.Request().Context(), "profile fetch failed", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.JSONBlob(http.StatusOK, rec.Payload)
}

func (s *Server) listIDs(c echo.Context) error {
	collection := c.Param("collection")
	if !validCollections[collection] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown collection"})
	}

	ids, err := s.records.ListIDs(c.Request().Context(), c.Param("tenant"), collection)
	if err != nil {
		s.log.Error(c.Request().Context(), "id list failed", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}
	if ids == nil {
		ids = []string{}
	}

	return c.JSON(http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) getRecord(c echo.Context) error {
	collection := c.Param("collection")
	if !validCollections[collection] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown collection"})
	}

	rec, err := s.records.Get(c.Request().Context(), c.Param("tenant"), collection, c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		s.log.Error(c.Request().Context(), "record fetch failed", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.JSONBlob(http.StatusOK, rec.Payload)
}

func (s *Server) putRecord(c echo.Context) error {
	collection := c.Param("collection")
	if !validCollections[collection] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown collection"})
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	var envelope recordEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid record payload"})
	}
	if envelope.UpdatedAt.IsZero() {
		envelope.UpdatedAt = time.Now().UTC()
	}

	rec := &models.StoredRecord{
		TenantID:   c.Param("tenant"),
		Collection: collection,
		ID:         c.Param("id"),
		Payload:    payload,
		Version:    envelope.Version,
		UpdatedAt:  envelope.UpdatedAt,
	}

	if err := s.records.Upsert(c.Request().Context(), rec); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return c.NoContent(http.StatusConflict)
		}
		s.log.Error(c.Request().Context(), "record upsert failed", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteRecord(c echo.Context) error {
	collection := c.Param("collection")
	if !validCollections[collection] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown collection"})
	}

	err := s.records.Delete(c.Request().Context(), c.Param("tenant"), collection, c.Param("id"))
	if err != nil {
		s.log.Error(c.Request().Context(), "record delete failed", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.NoContent(http.StatusNoContent)
}
