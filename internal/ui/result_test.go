package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestHeader_Render(t *testing.T) {
	h := NewHeader("Inventory Server", "upnp-discover serve",
		Param{Key: "Listen", Value: ":8900"},
		Param{Key: "Refresh", Value: "1m0s"},
	).SetWidth(80)

	out := h.Render()

	for _, want := range []string{"INVENTORY SERVER", "upnp-discover serve", "Listen:", ":8900", "Refresh:", "1m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "Listen:") > strings.Index(out, "Refresh:") {
		t.Errorf("Render() params out of order:\n%s", out)
	}
	if out != h.String() {
		t.Error("String() differs from Render()")
	}
}

func TestHeader_NoParams(t *testing.T) {
	out := NewHeader("Peers", "upnp-discover peers").SetWidth(20).Render()
	// Border, title, command, border
	if !strings.Contains(out, "PEERS") || strings.Count(out, "\n") != 3 {
		t.Errorf("Render() = %q, want title without divider", out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name: "success",
			result: NewSuccessResult("Configuration written",
				Param{Key: "Path", Value: "/tmp/config.yaml"}),
			want: []string{"SUCCESS", "Configuration written", "Path:", "/tmp/config.yaml"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No devices found").AddDetail("Timeout", "2s"),
			want:   []string{"WARNING", "No devices found", "Timeout:", "2s"},
		},
		{
			name: "failure",
			result: NewFailureResult("Scan failed", errors.New("no usable interfaces"),
				"Check that a network interface is up"),
			want: []string{"FAILED", "Scan failed", "Error: no usable interfaces", "Troubleshooting:", "Check that a network interface is up"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(100).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q in:\n%s", want, out)
				}
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact phrase", "overwrite\n", true},
		{"surrounding space", "  overwrite  \n", true},
		{"wrong phrase", "yes\n", false},
		{"no newline", "overwrite", true},
		{"no input", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			got := Confirm(strings.NewReader(tt.input), &out, "Overwrite configuration",
				[]string{"The existing file is replaced"}, "overwrite")
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "The existing file is replaced") {
				t.Errorf("Confirm() output missing warning:\n%s", out.String())
			}
		})
	}
}
