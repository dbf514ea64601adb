package block

import "github.com/dreamware/ringdb/internal/enginelog"

// enginelogPropagateFailure logs a derived-sequence propagation error
// without rolling back the source write: derived
// sequences are eventually consistent and a rebuild will repair them.
func enginelogPropagateFailure(blockName string, id int64, err error) {
	enginelog.WithBlock("", blockName).Warn().
		Int64("id", id).
		Err(err).
		Msg("derived sequence propagation failed")
}
