package pins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gumifu/van-bus-cast/models"
)

// SchemaVersion is the version written by Encode.
// Version 1 is the unversioned {stopIds, stopsData} format written by older clients.
const SchemaVersion = 2

// ErrUnsupportedVersion is returned for documents newer than this build understands
var ErrUnsupportedVersion = errors.New("unsupported pinned stops schema version")

// Document is the persisted pinned-stop set for one owner
type Document struct {
	Version int                          `json:"version"`
	Stops   map[string]models.PinnedStop `json:"stops"`
}

// NewDocument returns an empty current-version document
func NewDocument() Document {
	return Document{Version: SchemaVersion, Stops: map[string]models.PinnedStop{}}
}

// Encode serializes a document. Map keys are sorted so equal sets encode to equal bytes.
func Encode(doc Document) ([]byte, error) {
	doc.Version = SchemaVersion
	if doc.Stops == nil {
		doc.Stops = map[string]models.PinnedStop{}
	}
	return json.Marshal(doc)
}

// Decode parses a stored payload, migrating legacy formats.
// migrated is true when the payload was not already in the current format.
func Decode(data []byte) (doc Document, migrated bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return NewDocument(), false, nil
	}

	var head struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Document{}, false, fmt.Errorf("invalid pinned stops payload: %w", err)
	}

	if head.Version == nil {
		doc, err := decodeLegacy(data)
		return doc, true, err
	}

	switch *head.Version {
	case SchemaVersion:
		doc := NewDocument()
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, false, fmt.Errorf("invalid pinned stops document: %w", err)
		}
		if doc.Stops == nil {
			doc.Stops = map[string]models.PinnedStop{}
		}
		for id, s := range doc.Stops {
			s.StopID = id
			doc.Stops[id] = s
		}
		return doc, false, nil
	default:
		return Document{}, false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *head.Version)
	}
}

// legacyDocument is the unversioned client format. stopsData was written either
// as an object keyed by stop ID or as an array of entries carrying stopId.
type legacyDocument struct {
	StopIDs   []json.RawMessage `json:"stopIds"`
	StopsData json.RawMessage   `json:"stopsData"`
}

// legacyStop accepts the flat snapshot shape and the GeoJSON feature shape
type legacyStop struct {
	StopID     json.RawMessage `json:"stopId"`
	StopIDAlt  json.RawMessage `json:"stop_id"`
	Name       string          `json:"name"`
	StopName   string          `json:"stop_name"`
	Code       json.RawMessage `json:"code"`
	StopCode   json.RawMessage `json:"stop_code"`
	Longitude  float64         `json:"longitude"`
	Latitude   float64         `json:"latitude"`
	Properties *legacyStop     `json:"properties"`
	Geometry   *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

func decodeLegacy(data []byte) (Document, error) {
	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Document{}, fmt.Errorf("invalid legacy pinned stops payload: %w", err)
	}

	entries, err := legacyEntries(legacy.StopsData)
	if err != nil {
		return Document{}, err
	}

	doc := NewDocument()
	for _, raw := range legacy.StopIDs {
		id := rawID(raw)
		if id == "" {
			continue
		}
		snapshot := models.PinnedStop{StopID: id}
		if entry, ok := entries[id]; ok {
			fillSnapshot(&snapshot, entry)
		}
		doc.Stops[id] = snapshot
	}
	return doc, nil
}

func legacyEntries(raw json.RawMessage) (map[string]legacyStop, error) {
	entries := make(map[string]legacyStop)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return entries, nil
	}

	switch raw[0] {
	case '{':
		var byID map[string]legacyStop
		if err := json.Unmarshal(raw, &byID); err != nil {
			return nil, fmt.Errorf("invalid legacy stopsData object: %w", err)
		}
		for id, entry := range byID {
			entries[id] = entry
		}
	case '[':
		var list []legacyStop
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("invalid legacy stopsData array: %w", err)
		}
		for _, entry := range list {
			if id := entryID(entry); id != "" {
				entries[id] = entry
			}
		}
	default:
		return nil, errors.New("invalid legacy stopsData: expected object or array")
	}
	return entries, nil
}

func entryID(e legacyStop) string {
	if id := rawID(e.StopID); id != "" {
		return id
	}
	if id := rawID(e.StopIDAlt); id != "" {
		return id
	}
	if e.Properties != nil {
		return entryID(*e.Properties)
	}
	return ""
}

func fillSnapshot(s *models.PinnedStop, e legacyStop) {
	if s.Name == "" {
		s.Name = firstNonEmpty(e.Name, e.StopName)
	}
	if s.Code == "" {
		s.Code = firstNonEmpty(rawID(e.Code), rawID(e.StopCode))
	}
	if s.Longitude == 0 && s.Latitude == 0 {
		s.Longitude, s.Latitude = e.Longitude, e.Latitude
		if e.Geometry != nil && len(e.Geometry.Coordinates) >= 2 {
			s.Longitude, s.Latitude = e.Geometry.Coordinates[0], e.Geometry.Coordinates[1]
		}
	}
	if e.Properties != nil {
		fillSnapshot(s, *e.Properties)
	}
}

// rawID reads a JSON string or number as a string ID
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
