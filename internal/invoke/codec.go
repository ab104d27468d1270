package invoke

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aryankumar/sfs/internal/forecast"
)

// Request is the wire form of a work unit
type Request struct {
	Key             forecast.GroupKey      `json:"key"`
	Rows            []forecast.Observation `json:"rows"`
	Horizon         int                    `json:"horizon"`
	Frequency       forecast.Frequency     `json:"frequency"`
	ObjectiveMetric string                 `json:"obj_metric"`
	CVStride        int                    `json:"cv_stride"`
}

// Response is the wire form of a unit result. A non-empty Error means the
// computation failed and the other fields are unset.
type Response struct {
	Key         forecast.GroupKey     `json:"key"`
	Predictions []forecast.Prediction `json:"predictions,omitempty"`
	Metrics     *forecast.Metrics     `json:"metrics,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// EncodeRequest serializes a unit
func EncodeRequest(unit forecast.WorkUnit) ([]byte, error) {
	b, err := json.Marshal(Request{
		Key:             unit.Key,
		Rows:            unit.Rows,
		Horizon:         unit.Horizon,
		Frequency:       unit.Frequency,
		ObjectiveMetric: unit.ObjectiveMetric,
		CVStride:        unit.CVStride,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request for %s: %w", unit.Key, err)
	}
	return b, nil
}

// DecodeRequest parses a serialized unit
func DecodeRequest(b []byte) (forecast.WorkUnit, error) {
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return forecast.WorkUnit{}, fmt.Errorf("failed to decode request: %w", err)
	}
	return forecast.WorkUnit{
		Key:             req.Key,
		Rows:            req.Rows,
		Horizon:         req.Horizon,
		Frequency:       req.Frequency,
		ObjectiveMetric: req.ObjectiveMetric,
		CVStride:        req.CVStride,
	}, nil
}

// EncodeResponse serializes a result, or the error when err is non-nil
func EncodeResponse(key forecast.GroupKey, result forecast.UnitResult, err error) ([]byte, error) {
	resp := Response{Key: key}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Key = result.Key
		resp.Predictions = result.Predictions
		m := result.Metrics
		resp.Metrics = &m
	}
	b, mErr := json.Marshal(resp)
	if mErr != nil {
		return nil, fmt.Errorf("failed to encode response for %s: %w", key, mErr)
	}
	return b, nil
}

// DecodeResponse parses a serialized result. A response carrying an error
// decodes to a *RemoteError.
func DecodeResponse(b []byte) (forecast.UnitResult, error) {
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return forecast.UnitResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Error != "" {
		return forecast.UnitResult{}, &RemoteError{Message: resp.Error}
	}
	if resp.Metrics == nil {
		return forecast.UnitResult{}, fmt.Errorf("failed to decode response for %s: missing metrics", resp.Key)
	}
	return forecast.UnitResult{
		Key:         resp.Key,
		Predictions: resp.Predictions,
		Metrics:     *resp.Metrics,
	}, nil
}

// HandlerFunc is the shape of a remote function entry point
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Handler adapts a compute function to the wire format. Compute failures
// travel inside the response so the caller can tell them from transport
// errors; only an undecodable request is returned as an error.
func Handler(compute forecast.ComputeFunc) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		unit, err := DecodeRequest(payload)
		if err != nil {
			return nil, err
		}
		result, err := compute(ctx, unit)
		return EncodeResponse(unit.Key, result, err)
	}
}
