package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/school"
)

func newTestLogger(out *bytes.Buffer) *RollbarLogger {
	conf := &core.Config{Env: "TEST", TestMode: true}
	logger := NewRollbarLogger(log.New(out, "", 0), conf)
	logger.Enable(false)
	return logger
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := newTestLogger(new(bytes.Buffer))
	adm := school.Admin{ID: "1", Email: "minerva@hogwarts.edu", GivenName: "Minerva"}
	err := errors.New("boom")
	extras := map[string]interface{}{"kind": "parent"}

	args := logger.prepare("importing", []interface{}{err, adm, extras, school.Admin{ID: "2"}})
	assert.Equal(t, []interface{}{"importing", err, extras}, args)
}

func TestRollbarLogger_print(t *testing.T) {
	out := new(bytes.Buffer)
	logger := newTestLogger(out)

	logger.Info("import done", school.Admin{ID: "1"}, map[string]int{"inserted": 2})
	assert.Equal(t, "import done\nmap[inserted:2]\n", out.String())
}
