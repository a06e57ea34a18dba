// Package hellopb holds the protobuf messages and gRPC stubs of the
// hello.Greeter service.
package hellopb

//go:generate protoc --go_out=. --go_opt=paths=source_relative --go-grpc_out=. --go-grpc_opt=paths=source_relative hello.proto
