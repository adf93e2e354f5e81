package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/droid-agent/internal/executor"
	"github.com/nerrad567/droid-agent/internal/history"
	"github.com/nerrad567/droid-agent/internal/infrastructure/config"
	"github.com/nerrad567/droid-agent/internal/infrastructure/database"
	"github.com/nerrad567/droid-agent/internal/protocol"
	"github.com/nerrad567/droid-agent/internal/simulator"
	"github.com/nerrad567/droid-agent/internal/uitree"

	_ "github.com/nerrad567/droid-agent/migrations"
)

func newTestAgent(t *testing.T) (*Agent, *simulator.Device) {
	t.Helper()
	cfg := config.Default()
	cfg.History.Enabled = false

	device := simulator.New()
	device.InstallApp(
		executor.AppInfo{PackageName: "com.example.demo", AppName: "Demo"},
		".MainActivity",
		&uitree.Node{
			ClassName: "android.widget.FrameLayout",
			Bounds:    uitree.Bounds{Right: 1080, Bottom: 2400},
			Children: []*uitree.Node{
				{
					Text:      "Submit",
					ClassName: "android.widget.Button",
					Bounds:    uitree.Bounds{Left: 40, Top: 100, Right: 400, Bottom: 200},
					Clickable: true,
					Enabled:   true,
				},
			},
		},
	)

	return New(cfg, device, Dependencies{}), device
}

func request(action string, params map[string]any) *protocol.RequestMessage {
	return &protocol.RequestMessage{
		Type:       protocol.TypeRequest,
		RequestID:  "req-1",
		ActionType: action,
		Parameters: params,
		Timestamp:  protocol.Now(),
	}
}

func TestHandleRequestAttachesDeviceState(t *testing.T) {
	a, _ := newTestAgent(t)

	data := a.HandleRequest(context.Background(), request("get_ui_state", nil))

	if data["status"] != "success" {
		t.Fatalf("status = %v, message = %v", data["status"], data["message"])
	}
	state, ok := data["deviceState"].(uitree.DeviceState)
	if !ok {
		t.Fatalf("deviceState missing or wrong type: %T", data["deviceState"])
	}
	if state.CurrentPackage != "com.android.launcher" {
		t.Errorf("currentPackage = %q", state.CurrentPackage)
	}
	if state.ScreenState != uitree.ScreenOn {
		t.Errorf("screenState = %q", state.ScreenState)
	}
}

func TestHandleRequestFindElementNotFound(t *testing.T) {
	a, _ := newTestAgent(t)

	data := a.HandleRequest(context.Background(), request("find_element", map[string]any{"text": "no such element"}))

	if data["status"] != "success" {
		t.Fatalf("status = %v; a miss is not an error", data["status"])
	}
	info, ok := data["elementInfo"].(uitree.ElementInfo)
	if !ok {
		t.Fatalf("elementInfo missing or wrong type: %T", data["elementInfo"])
	}
	if info.Found {
		t.Error("found = true for absent element")
	}
	if _, hasState := data["deviceState"]; hasState {
		t.Error("find_element should not carry a device snapshot")
	}
}

func TestHandleRequestUnknownAction(t *testing.T) {
	a, _ := newTestAgent(t)

	data := a.HandleRequest(context.Background(), request("teleport", nil))

	if data["status"] != "error" {
		t.Errorf("status = %v", data["status"])
	}
}

func TestUIChangeDetection(t *testing.T) {
	a, device := newTestAgent(t)

	data := a.HandleRequest(context.Background(), request("launch_app", map[string]any{"packageName": "com.example.demo"}))
	if data["status"] != "success" {
		t.Fatalf("launch_app failed: %v", data["message"])
	}
	if got := a.Stats().UIChangesDetected; got != 1 {
		t.Fatalf("UIChangesDetected = %d, want 1", got)
	}

	// Re-announcing the same hierarchy must not count as a change.
	root, _ := device.Root(context.Background())
	device.SetRoot(root)
	if got := a.Stats().UIChangesDetected; got != 1 {
		t.Errorf("UIChangesDetected after identical redraw = %d, want 1", got)
	}

	// A different screen does.
	device.SetRoot(&uitree.Node{
		ClassName: "android.widget.FrameLayout",
		Children: []*uitree.Node{
			{Text: "Other", Clickable: true, Enabled: true},
		},
	})
	if got := a.Stats().UIChangesDetected; got != 2 {
		t.Errorf("UIChangesDetected after new screen = %d, want 2", got)
	}
}

func TestHandleRequestRecordsHistory(t *testing.T) {
	cfg := config.Default()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "agent.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := history.NewRepository(db)

	a := New(cfg, simulator.New(), Dependencies{History: repo})

	data := a.HandleRequest(context.Background(), request("back", nil))
	if data["status"] != "success" {
		t.Fatalf("back failed: %v", data["message"])
	}

	entries, err := repo.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
	if entries[0].ActionType != "back" || !entries[0].Success {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestSessionConfigFromAgentConfig(t *testing.T) {
	a, _ := newTestAgent(t)
	sc := a.sessionConfig()

	if sc.DeviceID != a.cfg.Agent.DeviceID {
		t.Errorf("DeviceID = %q", sc.DeviceID)
	}
	if sc.Host != a.cfg.Server.Host || sc.Port != a.cfg.Server.Port {
		t.Errorf("server = %s:%d", sc.Host, sc.Port)
	}
}
