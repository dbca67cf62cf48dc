package cip

// Connection is a logical channel opened by Forward Open over an EIP
// session. It is owned by exactly one TCP connection and never shared.
type Connection struct {
	Open bool

	ServerConnectionID uint32 // O->T id, server-assigned
	ClientConnectionID uint32 // T->O id, client-supplied

	ConnSerialNumber       uint16
	VendorID               uint16
	OriginatorSerialNumber uint32

	OTRPI uint32
	TORPI uint32

	OTMaxPacket int
	TOMaxPacket int

	ConnectionSequence uint16

	// RejectRemaining counts down the --reject_fo injected failures left
	// for this connection.
	RejectRemaining int
}
