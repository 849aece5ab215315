// Package console implements the gRPC remote console of the device.
//
// The service is described by a hand-written grpc.ServiceDesc over protobuf
// well-known types, so no generated code is involved: Exec carries a command
// line in a StringValue and returns the captured reply, GetStatus returns the
// controller snapshot as a Struct. The calling operator travels in the x-actor
// metadata key as username@hostname.
package console
