package contents

import "github.com/smilyorg/contentsd/internal/entry"

// CreateOptions selects which of the three create modes (spec §4.3) a
// Create call uses. When more than one of Directory, Ext, or CopyFrom is
// set, Create uses CopyFrom first, then Directory, then Ext; the façade
// passes request bodies through without rejecting mixed ones.
type CreateOptions struct {
	Directory bool
	Ext       string
	CopyFrom  string
}

// UploadBody is the decoded PUT body (spec §4.3 "upload").
type UploadBody struct {
	Type     entry.Type
	Format   entry.Format
	Content  interface{}
	CopyFrom string
}
