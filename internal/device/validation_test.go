package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-panel/internal/hardware"
)

func TestParsePower(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		wantErr bool
	}{
		{"ON", true, false},
		{"OFF", false, false},
		{"on", false, true},
		{" ON", false, true},
		{"", false, true},
		{"TOGGLE", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParsePower([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePower(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("ParsePower(%q) error should wrap ErrValidation", tt.payload)
			}
			if got != tt.want {
				t.Errorf("ParsePower(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}

	if FormatPower(true) != "ON" || FormatPower(false) != "OFF" {
		t.Error("FormatPower() should render ON/OFF")
	}
}

func TestParseBrightness(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		max     int
		want    int
		wantErr bool
	}{
		{"zero", "0", 255, 0, false},
		{"max", "255", 255, 255, false},
		{"whitespace", " 128\n", 255, 128, false},
		{"above max", "400", 255, 0, true},
		{"negative", "-1", 255, 0, true},
		{"float", "12.5", 255, 0, true},
		{"text", "bright", 255, 0, true},
		{"empty", "", 255, 0, true},
		{"too long", strings.Repeat("1", 40), 255, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBrightness([]byte(tt.payload), tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBrightness(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBrightness(%q) = %d, want %d", tt.payload, got, tt.want)
			}
		})
	}

	if FormatBrightness(128) != "128" {
		t.Errorf("FormatBrightness(128) = %q", FormatBrightness(128))
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		payload string
		want    hardware.RGB
		wantErr bool
	}{
		{"255,0,64", hardware.RGB{R: 255, B: 64}, false},
		{" 1 , 2 , 3 ", hardware.RGB{R: 1, G: 2, B: 3}, false},
		{"0,0,0", hardware.RGB{}, false},
		{"256,0,0", hardware.RGB{}, true},
		{"-1,0,0", hardware.RGB{}, true},
		{"1,2", hardware.RGB{}, true},
		{"1,2,3,4", hardware.RGB{}, true},
		{"red", hardware.RGB{}, true},
		{"1,,3", hardware.RGB{}, true},
		{"#ff0000", hardware.RGB{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseColor([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := ParseBrightness([]byte("400"), 255)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %T is not *ValidationError", err)
	}
	if verr.Field != "brightness" || verr.Value != "400" {
		t.Errorf("ValidationError = %+v", verr)
	}
	if !strings.Contains(err.Error(), "between 0 and 255") {
		t.Errorf("Error() = %q, want range in message", err.Error())
	}
}

func TestGenerateCommandID(t *testing.T) {
	a, b := GenerateCommandID(), GenerateCommandID()
	if len(a) != 36 {
		t.Errorf("GenerateCommandID() = %q, want UUID string", a)
	}
	if a == b {
		t.Error("GenerateCommandID() returned duplicate IDs")
	}
}

func TestEntityAndUpdateHelpers(t *testing.T) {
	for _, name := range []string{"display", "led", "sensors"} {
		if _, ok := ParseEntity(name); !ok {
			t.Errorf("ParseEntity(%q) not ok", name)
		}
	}
	if _, ok := ParseEntity("speaker"); ok {
		t.Error("ParseEntity(\"speaker\") should fail")
	}

	on := true
	u := Update{DisplayOn: &on}
	if u.IsEmpty() || !u.TouchesDisplay() || u.TouchesLED() {
		t.Errorf("Update{DisplayOn} helpers wrong: %+v", u)
	}

	a := State{DisplayOn: true, DisplayBrightness: 10}
	b := a
	b.LEDColor = hardware.RGB{R: 1}
	if a.DisplayDiverged(b) || !a.LEDDiverged(b) || !a.Diverged(b) {
		t.Error("State divergence helpers disagree")
	}
}
