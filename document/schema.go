package document

import (
	"github.com/Masterminds/semver/v3"

	"github.com/ndx-io/NDX/errors"
)

// CurrentSchemaVersion is stamped onto new documents. The major component
// gates compatibility: documents written under a different major cannot be
// read safely.
const CurrentSchemaVersion = "1.0.0"

// ErrSchemaIncompatible is returned for documents whose schema major differs
// from the running version's.
var ErrSchemaIncompatible = errors.New("incompatible document schema version")

var currentSchema = semver.MustParse(CurrentSchemaVersion)

// CheckSchemaVersion parses a document's schema version and rejects a major
// mismatch. Minor and patch drift is fine in both directions; additive
// fields are ignored by older readers.
func CheckSchemaVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.NewInvalidRequestError("schema version %q is not semver: %v", version, err)
	}
	if v.Major() != currentSchema.Major() {
		return errors.Wrapf(ErrSchemaIncompatible, "document has %s, this build reads %s", version, CurrentSchemaVersion)
	}
	return nil
}
