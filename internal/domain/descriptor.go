package domain

// DescriptorAccount is one account entry of an instruction descriptor,
// exactly as the backend serializes it.
type DescriptorAccount struct {
	Address    string `json:"address"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// InstructionDescriptor is the backend's untyped description of one
// on-chain operation. Order across descriptors is significant: it is
// the execution order inside the built transaction. The payload is
// opaque beyond being valid base64; the pipeline never interprets it.
type InstructionDescriptor struct {
	ProgramAddress string              `json:"programAddress"`
	Accounts       []DescriptorAccount `json:"accounts"`
	Payload        string              `json:"payload"` // base64
}
