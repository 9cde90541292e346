package omnibus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToWireCase(t *testing.T) {
	tests := map[string]struct {
		in   any
		want any
	}{
		"nil":    {in: nil, want: nil},
		"string": {in: "boardTypeId", want: "boardTypeId"},
		"number": {in: 1.5, want: 1.5},
		"flat mapping": {
			in:   map[string]any{"boardTypeId": "GPS", "msgPrio": "HIGH"},
			want: map[string]any{"board_type_id": "GPS", "msg_prio": "HIGH"},
		},
		"nested mapping": {
			in:   map[string]any{"canMsg": map[string]any{"boardId": 3}},
			want: map[string]any{"can_msg": map[string]any{"board_id": 3}},
		},
		"mapping inside array": {
			in:   map[string]any{"sensorList": []any{map[string]any{"sensorName": "a"}, "plainText"}},
			want: map[string]any{"sensor_list": []any{map[string]any{"sensor_name": "a"}, "plainText"}},
		},
		"digit boundary": {
			in:   map[string]any{"sensor1": []any{1.0}},
			want: map[string]any{"sensor_1": []any{1.0}},
		},
		"typed mapping": {
			in:   map[string][]float64{"sensor1": {1, 2}},
			want: map[string]any{"sensor_1": []float64{1, 2}},
		},
		"already snake": {
			in:   map[string]any{"sample_rate": 1000},
			want: map[string]any{"sample_rate": 1000},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToWireCase(tt.in))
		})
	}
}

func TestToInternalCase(t *testing.T) {
	tests := map[string]struct {
		in   any
		want any
	}{
		"flat mapping": {
			in:   map[string]any{"board_type_id": "GPS", "message_format_version": 2},
			want: map[string]any{"boardTypeId": "GPS", "messageFormatVersion": 2},
		},
		"digit boundary": {
			in:   map[string]any{"sensor_1": 1},
			want: map[string]any{"sensor1": 1},
		},
		"mapping inside array": {
			in:   []any{map[string]any{"relative_timestamps": []any{0.0}}},
			want: []any{map[string]any{"relativeTimestamps": []any{0.0}}},
		},
		"already camel": {
			in:   map[string]any{"sampleRate": 1000},
			want: map[string]any{"sampleRate": 1000},
		},
		"loose mapping": {
			in:   map[any]any{"can_msg": 1, 7: "seven"},
			want: map[any]any{"canMsg": 1, 7: "seven"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToInternalCase(tt.in))
		})
	}
}

func TestCasingDoesNotModifyInput(t *testing.T) {
	in := map[string]any{
		"boardTypeId": "GPS",
		"data":        map[string]any{"gpsFix": true},
	}

	_ = ToWireCase(in)

	assert.Equal(t, map[string]any{
		"boardTypeId": "GPS",
		"data":        map[string]any{"gpsFix": true},
	}, in)
}

func TestCasingRoundTrip(t *testing.T) {
	internal := map[string]any{
		"timestamp":            1000.0,
		"data":                 map[string]any{"sensor1": []any{1.0}, "tankPressure": []any{2.0}},
		"relativeTimestamps":   []any{0.0},
		"sampleRate":           1000,
		"messageFormatVersion": 3,
	}

	assert.Equal(t, internal, ToInternalCase(ToWireCase(internal)))
}
