package dbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/widget"
)

func TestNewLeakInfo(t *testing.T) {
	tests := []struct {
		name       string
		leak       cleanup.LeakDetected
		wantHandle string
	}{
		{
			name: "handle leak",
			leak: cleanup.LeakDetected{
				Owner: "*main.screen#1", Window: "settings", WindowID: 3,
				Handle: widget.Ref{ID: 7, Gen: 2}, Kind: "button", DetectedAt: time.Second,
			},
			wantHandle: widget.Ref{ID: 7, Gen: 2}.String(),
		},
		{
			name: "owner leak",
			leak: cleanup.LeakDetected{
				Owner: "*main.screen#2", Window: "inbox", WindowID: 4, Kind: cleanup.OwnerKind,
			},
			wantHandle: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewLeakInfo(tt.leak)
			assert.Equal(t, tt.leak.Owner, info.Owner)
			assert.Equal(t, tt.leak.Window, info.Window)
			assert.Equal(t, tt.leak.WindowID, info.WindowID)
			assert.Equal(t, tt.leak.Kind, info.Kind)
			assert.Equal(t, tt.wantHandle, info.Handle)
			assert.Equal(t, tt.leak.Error(), info.Message)
		})
	}
}

func TestLeakInfos_NeverNil(t *testing.T) {
	assert.NotNil(t, LeakInfos(nil))
	assert.Len(t, LeakInfos([]cleanup.LeakDetected{{}, {}}), 2)
}

func TestParseLeakSignal(t *testing.T) {
	tests := []struct {
		name string
		body []any
		ok   bool
	}{
		{"valid", []any{"o", "w", "text", uint64(2), "#1.1", "msg"}, true},
		{"short", []any{"o", "w"}, false},
		{"wrong type", []any{"o", "w", "text", int32(2), "#1.1", "msg"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := parseLeakSignal(tt.body)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, LeakInfo{Owner: "o", Window: "w", Kind: "text", WindowID: 2, Handle: "#1.1", Message: "msg"}, info)
			}
		})
	}
}
