package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drawmind/htp-server/pkg/htp"
)

// writeStubScript installs a shell script standing in for the Python
// renderer so the tests exercise the subprocess plumbing only.
func writeStubScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write stub script: %v", err)
	}
	return path
}

func testSession() *htp.Session {
	return &htp.Session{
		ID:               "sess-1",
		Name:             "홍길동",
		Gender:           "male",
		Birth:            "2015-03-01",
		OverallSummary:   "종합 해석",
		DiagnosisSummary: "전문가의 상담이 필요하지 않습니다.",
		Drawings: []htp.Drawing{
			{
				Type:     htp.TypeHouse,
				Path:     "/uploads/house.png",
				Duration: 90,
				Result:   &htp.DrawingResult{Summary: "집 요약"},
			},
		},
	}
}

func TestRenderPassesPayloadOnStdin(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "payload.json")
	script := writeStubScript(t, "cat > "+captured+"\nexit 0")

	r := New(Config{
		PythonPath: "/bin/sh",
		ScriptPath: script,
		OutputDir:  t.TempDir(),
	})
	path, err := r.Render(context.Background(), testSession())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasSuffix(path, "htp-report-sess-1.pdf") {
		t.Errorf("unexpected output path %q", path)
	}

	data, err := os.ReadFile(captured)
	if err != nil {
		t.Fatalf("stub did not receive stdin: %v", err)
	}
	payload := string(data)
	for _, want := range []string{`"name":"홍길동"`, `"type":"house"`, `"summary":"집 요약"`, `"_out_pdf"`} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload missing %s: %s", want, payload)
		}
	}
}

func TestRenderSurfacesStderr(t *testing.T) {
	script := writeStubScript(t, "cat > /dev/null\necho 'font not found' >&2\nexit 3")

	r := New(Config{
		PythonPath: "/bin/sh",
		ScriptPath: script,
		OutputDir:  t.TempDir(),
	})
	_, err := r.Render(context.Background(), testSession())
	if err == nil {
		t.Fatal("expected an error from the failing script")
	}
	if !strings.Contains(err.Error(), "font not found") {
		t.Errorf("stderr not surfaced: %v", err)
	}
}
