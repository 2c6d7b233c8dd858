package errors

import "regexp"

const maxIDLength = 128

// idRegex matches graph and shard identifiers: a letter or digit followed by
// letters, digits, dots, dashes or underscores.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateID checks a graph or shard identifier. Identifiers end up in URL
// paths, cache keys and file names.
func ValidateID(kind, id string) error {
	switch {
	case id == "":
		return New(ErrCodeInvalidArgument, "%s id cannot be empty", kind)
	case len(id) > maxIDLength:
		return New(ErrCodeInvalidArgument, "%s id too long (max %d characters)", kind, maxIDLength)
	case !idRegex.MatchString(id):
		return New(ErrCodeInvalidArgument, "invalid %s id: %q", kind, id)
	}
	return nil
}
