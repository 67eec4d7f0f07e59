package gtfsrt

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/proto"
)

// Decoder turns a raw feed body into vehicle entities.
type Decoder interface {
	Decode(body []byte) ([]VehicleEntity, error)
	Format() string
}

// ProtobufDecoder decodes binary GTFS-RT FeedMessage payloads.
type ProtobufDecoder struct{}

// JSONDecoder decodes the JSON mirror of a FeedMessage ({"entity": [...]}).
// Both proto field names (route_id) and JSON names (routeId) are accepted.
type JSONDecoder struct{}

// Partial messages are allowed so that a single entity lacking a required
// field (e.g. latitude) is skipped instead of failing the whole feed.
var protoOpts = proto.UnmarshalOptions{AllowPartial: true, DiscardUnknown: true}

func (ProtobufDecoder) Format() string { return "protobuf" }
func (JSONDecoder) Format() string     { return "json" }

// DecoderFor selects a decoder from the response content type, sniffing the
// body when the content type is missing or generic.
func DecoderFor(contentType string, body []byte) Decoder {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return JSONDecoder{}
	case strings.Contains(ct, "protobuf"), strings.Contains(ct, "octet-stream"):
		return ProtobufDecoder{}
	}
	if trimmed := bytes.TrimLeft(body, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return JSONDecoder{}
	}
	return ProtobufDecoder{}
}

// Decode decodes body with the decoder matching contentType.
func Decode(body []byte, contentType string) ([]VehicleEntity, error) {
	return DecoderFor(contentType, body).Decode(body)
}

func (d ProtobufDecoder) Decode(body []byte) ([]VehicleEntity, error) {
	_, ents, err := d.decode(body)
	return ents, err
}

func (ProtobufDecoder) decode(body []byte) (int64, []VehicleEntity, error) {
	var fm gtfsrtpb.FeedMessage
	if err := protoOpts.Unmarshal(body, &fm); err != nil {
		return 0, nil, &DecodeError{Format: "protobuf", Err: err}
	}
	var headerTS int64
	if fm.Header != nil && fm.Header.Timestamp != nil {
		headerTS = int64(*fm.Header.Timestamp)
	}
	out := make([]VehicleEntity, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		if e == nil || e.Vehicle == nil {
			continue
		}
		v := e.Vehicle
		if v.Position == nil || v.Position.Latitude == nil || v.Position.Longitude == nil {
			continue
		}
		lat, lon := float64(*v.Position.Latitude), float64(*v.Position.Longitude)
		if !finite(lat) || !finite(lon) {
			continue
		}
		ent := VehicleEntity{
			ID:        e.GetId(),
			Latitude:  lat,
			Longitude: lon,
		}
		if t := v.Trip; t != nil {
			ent.TripID = t.GetTripId()
			ent.RouteID = t.GetRouteId()
			ent.StartTime = t.GetStartTime()
			if t.DirectionId != nil {
				ent.DirectionID = strconv.FormatUint(uint64(*t.DirectionId), 10)
			}
		}
		if v.Vehicle != nil {
			ent.VehicleID = v.Vehicle.GetId()
		}
		if v.Timestamp != nil {
			ent.Timestamp = float64(*v.Timestamp)
		}
		out = append(out, ent)
	}
	return headerTS, out, nil
}

func (d JSONDecoder) Decode(body []byte) ([]VehicleEntity, error) {
	_, ents, err := d.decode(body)
	return ents, err
}

func (JSONDecoder) decode(body []byte) (int64, []VehicleEntity, error) {
	if !gjson.ValidBytes(body) {
		return 0, nil, &DecodeError{Format: "json", Err: errors.New("invalid JSON document")}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return 0, nil, &DecodeError{Format: "json", Err: errors.New("top-level value is not an object")}
	}
	var headerTS int64
	if ts, ok := floatField(root, "header.timestamp"); ok {
		headerTS = int64(ts)
	}
	list := root.Get("entity")
	if !list.Exists() || list.Type == gjson.Null {
		return headerTS, []VehicleEntity{}, nil
	}
	if !list.IsArray() {
		return 0, nil, &DecodeError{Format: "json", Err: errors.New("entity is not an array")}
	}
	items := list.Array()
	out := make([]VehicleEntity, 0, len(items))
	for _, e := range items {
		if ent, ok := jsonEntity(e); ok {
			out = append(out, ent)
		}
	}
	return headerTS, out, nil
}

func jsonEntity(e gjson.Result) (VehicleEntity, bool) {
	v := e.Get("vehicle")
	if !v.IsObject() {
		return VehicleEntity{}, false
	}
	lat, okLat := floatField(v, "position.latitude")
	lon, okLon := floatField(v, "position.longitude")
	if !okLat || !okLon || !finite(lat) || !finite(lon) {
		return VehicleEntity{}, false
	}
	ent := VehicleEntity{
		ID:          stringField(e, "id"),
		TripID:      stringField(v, "trip.trip_id", "trip.tripId"),
		RouteID:     stringField(v, "trip.route_id", "trip.routeId"),
		DirectionID: stringField(v, "trip.direction_id", "trip.directionId"),
		StartTime:   stringField(v, "trip.start_time", "trip.startTime"),
		VehicleID:   stringField(v, "vehicle.id"),
		Latitude:    lat,
		Longitude:   lon,
	}
	if ts, ok := floatField(v, "timestamp"); ok {
		ent.Timestamp = ts
	}
	return ent, true
}

// finite rejects NaN and infinities, which both wire formats can carry.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func lookup(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// stringField reads a string or number; anything else is treated as absent.
func stringField(r gjson.Result, paths ...string) string {
	v := lookup(r, paths...)
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	}
	return ""
}

// floatField reads a number, or a string holding a number (uint64 fields are
// often rendered as strings by JSON mirrors).
func floatField(r gjson.Result, paths ...string) (float64, bool) {
	v := lookup(r, paths...)
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
