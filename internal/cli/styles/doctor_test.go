package styles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/lockhinter/internal/cli/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme()
}

func TestDoctorRenderer_AllOK(t *testing.T) {
	r := styles.NewDoctorRenderer(testTheme())

	out := r.Render(styles.DoctorReport{
		OverallOK: true,
		Checks: []styles.DoctorCheck{
			{Name: "System bus", OK: true, Detail: "connected"},
			{Name: "logind", OK: true, Detail: "owned by :1.4"},
		},
	})

	assert.Contains(t, out, "Doctor")
	assert.Contains(t, out, "System bus")
	assert.Contains(t, out, "owned by :1.4")
	assert.NotContains(t, out, "Needs attention")
}

func TestDoctorRenderer_Failure(t *testing.T) {
	r := styles.NewDoctorRenderer(testTheme())

	out := r.Render(styles.DoctorReport{
		OverallOK: false,
		Checks: []styles.DoctorCheck{
			{Name: "System bus", Error: "connection refused"},
			{Name: "logind", Skipped: true},
		},
	})

	assert.Contains(t, out, "Needs attention")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "Skipped")
	assert.Contains(t, out, "previous check failed")
}
