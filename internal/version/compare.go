package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// CheckVersionCompatibility checks that a strategy written for required can
// run on engine.
//
//   - "main" on either side skips the check
//   - major and minor must match
//   - patch may differ
func CheckVersionCompatibility(engine, required string) error {
	engine = strings.TrimPrefix(engine, "v")
	required = strings.TrimPrefix(required, "v")

	if engine == "main" || required == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engine)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid engine version '%s'", engine)
	}

	requiredSemver, err := semver.NewVersion(required)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid strategy engine version '%s'", required)
	}

	if engineSemver.Major() != requiredSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"major version mismatch: engine is %d.x.x but strategy requires %d.x.x",
			engineSemver.Major(), requiredSemver.Major())
	}

	if engineSemver.Minor() != requiredSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch,
			"minor version mismatch: engine is %d.%d.x but strategy requires %d.%d.x",
			engineSemver.Major(), engineSemver.Minor(), requiredSemver.Major(), requiredSemver.Minor())
	}

	return nil
}
