package exec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/pkg/slogx"
)

// dumpPlan writes a compiled plan as JSON into the debug graph directory,
// annotated with when and for whom it was saved. Dump failures are logged,
// never fatal: diagnostics must not take down a run.
func (c *core) dumpPlan(ctx context.Context, plan *graph.Plan, schemaKey string) {
	raw, err := plan.Encode()
	if err != nil {
		c.log.WarnContext(ctx, "plan dump failed", slogx.Error(err))
		return
	}
	raw, _ = sjson.SetBytes(raw, "meta.module", c.module.Name())
	raw, _ = sjson.SetBytes(raw, "meta.mode", c.mode.String())
	raw, _ = sjson.SetBytes(raw, "meta.schema", schemaKey)
	raw, _ = sjson.SetBytes(raw, "meta.saved_at", time.Now().UTC().Format(time.RFC3339))

	name := fmt.Sprintf("%s_%s_%s.json", c.module.Name(), c.mode, schemaKey)
	if prefix := c.dbg.NamePrefix(); prefix != "" {
		name = prefix + "_" + name
	}
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")

	path := filepath.Join(c.dbg.GraphDir(), name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		c.log.WarnContext(ctx, "plan dump failed", slogx.Error(err))
		return
	}
	c.log.DebugContext(ctx, "plan dumped", "path", path)
}
