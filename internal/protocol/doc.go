// Package protocol owns the matrix offload wire contract.
//
// Ownership boundary:
// - 3-byte command and acknowledgement tokens
// - error kinds shared by client and test servers
// - frame: DAT request and result payload framing
// - session: reliability config and poll pacing
package protocol
