package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/gogpu/naga"
)

// compileProgram validates both stages of a program with naga. The returned log lists one line per failing stage.
// Stages sharing one source module are compiled once.
func compileProgram(desc ProgramDescriptor) (string, error) {
	var log []string
	var errs []error
	compiled := make(map[string]error, 2)

	stage := func(name, src, entry string) {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, fmt.Errorf("%s stage: empty source", name))
			log = append(log, name+": empty source")
			return
		}
		err, done := compiled[src]
		if !done {
			_, err = naga.Compile(src)
			compiled[src] = err
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s stage: %w", name, err))
			log = append(log, fmt.Sprintf("%s: %v", name, err))
			return
		}
		if !strings.Contains(src, "fn "+entry+"(") {
			errs = append(errs, fmt.Errorf("%s stage: entry point %q not found", name, entry))
			log = append(log, fmt.Sprintf("%s: entry point %q not found", name, entry))
		}
	}
	stage("vertex", desc.VertexSource, vertexEntry(desc))
	stage("fragment", desc.FragmentSource, fragmentEntry(desc))

	return strings.Join(log, "\n"), errors.Join(errs...)
}

func vertexEntry(desc ProgramDescriptor) string {
	return common.Coalesce(desc.VertexEntry, "vs_main")
}

func fragmentEntry(desc ProgramDescriptor) string {
	return common.Coalesce(desc.FragmentEntry, "fs_main")
}
