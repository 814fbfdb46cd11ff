// Package pipeline sequences one deck generation run:
//
//	START → READ_INPUT → COMPILE_PROMPT → GENERATE → VALIDATE →
//	PERSIST_STORE → COMPILE_DECK → EXPORT_DECK → DONE
//
// Any step can move the run to FAILED. A failed run is never resumed; it is
// re-executed from START. Run reports its outcome as a Result value.
package pipeline
