// Package transport carries the command console bytes between the operator
// and the device.
//
// The device loop polls a Transport without blocking: ReceiveByte reports
// whether a byte was available, SendByte buffers and Flush pushes the buffered
// reply out. Stream adapts any io.ReadWriteCloser to that contract, and the
// openers build streams over a serial port, a websocket serial bridge or the
// process standard streams. Link and framing errors never reach the dispatcher;
// they end the input and are reported by Err.
package transport
