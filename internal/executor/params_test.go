package executor

import "testing"

func TestLaunchAppComponent(t *testing.T) {
	tests := []struct {
		name         string
		params       launchAppParams
		wantPkg      string
		wantActivity string
		wantErr      bool
	}{
		{"package only", launchAppParams{PackageName: "com.example"}, "com.example", "", false},
		{"full component", launchAppParams{PackageName: "com.example/com.example.Main"}, "com.example", "com.example.Main", false},
		{"dot shorthand", launchAppParams{PackageName: "com.example/.MainActivity"}, "com.example", "com.example.MainActivity", false},
		{"legacy package key", launchAppParams{Package: "com.example"}, "com.example", "", false},
		{"missing", launchAppParams{}, "", "", true},
		{"dangling slash", launchAppParams{PackageName: "com.example/"}, "", "", true},
		{"no package", launchAppParams{PackageName: "/.Main"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, activity, err := tt.params.component()
			if (err != nil) != tt.wantErr {
				t.Fatalf("component() error = %v, wantErr %v", err, tt.wantErr)
			}
			if pkg != tt.wantPkg || activity != tt.wantActivity {
				t.Errorf("component() = (%q, %q), want (%q, %q)", pkg, activity, tt.wantPkg, tt.wantActivity)
			}
		})
	}
}

func TestDecodeParamsWeakTyping(t *testing.T) {
	// JSON numbers arrive as float64; coordinates must still decode.
	var p swipeParams
	err := decodeParams(map[string]any{
		"x1": float64(100), "y1": float64(200),
		"x2": float64(100), "y2": float64(800),
		"duration": float64(250),
	}, &p)
	if err != nil {
		t.Fatalf("decodeParams() error = %v", err)
	}
	if *p.X1 != 100 || *p.Y2 != 800 || p.Duration != 250 {
		t.Errorf("decoded = %+v", p)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"click", "click", true},
		{"CLICK", "click", true},
		{"long_press", "long_press", true},
		{"LONG_CLICK", "long_press", true},
		{"type_text", "input_text", true},
		{"input_text", "input_text", true},
		{"PRESS_BACK", "back", true},
		{"press_home", "home", true},
		{"Wait", "wait", true},
		{"teleport", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
