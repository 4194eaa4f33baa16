// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/bureau-foundation/upty/lib/identity"
)

// RequestCodeSize is the on-wire width of a request code: the host's
// unsigned long, which matches Go's uint on every supported platform.
const RequestCodeSize = int(unsafe.Sizeof(uint(0)))

// IoctlRequest is one terminal-control request addressed to a virtual
// PTY endpoint.
type IoctlRequest struct {
	InstanceNumber uint32
	Half           identity.Half
	RequestCode    uint
	ArgType        ArgType

	// Payload is the byte image of the argument: the int value for
	// ArgInt, the pointed-at object for pointer shapes, empty for
	// ArgNone. Its length must equal ArgType.PayloadSize().
	Payload []byte
}

// requestFixedLength is everything in the frame before the payload.
const requestFixedLength = handshakeLength + InstanceNumberLength + 1 + RequestCodeSize + 1 + 1

// Validate checks that the request can be framed.
func (r IoctlRequest) Validate() error {
	if r.Half != identity.Master && r.Half != identity.Slave {
		return invalidField("half", "unknown half %d", r.Half)
	}
	if !r.ArgType.Valid() {
		return invalidField("argument type", "%s cannot be sent", r.ArgType)
	}
	if len(r.Payload) != r.ArgType.PayloadSize() {
		return invalidField("payload", "%s payload must be %d bytes, got %d",
			r.ArgType, r.ArgType.PayloadSize(), len(r.Payload))
	}
	return nil
}

// MarshalBinary encodes the complete request frame, handshake
// included.
func (r IoctlRequest) MarshalBinary() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, requestFixedLength+len(r.Payload))
	frame = appendHandshake(frame, RoleIoctlRequest)
	frame = byteOrder.AppendUint32(frame, r.InstanceNumber)
	frame = append(frame, byte(r.Half))
	frame = appendRequestCode(frame, r.RequestCode)
	frame = append(frame, byte(r.ArgType), byte(len(r.Payload)))
	frame = append(frame, r.Payload...)
	return frame, nil
}

// WriteIoctlRequest writes the whole frame with a single write so the
// manager never observes a partial header from a healthy client.
func WriteIoctlRequest(w io.Writer, request IoctlRequest) error {
	frame, err := request.MarshalBinary()
	if err != nil {
		return err
	}
	return writeField(w, "ioctl request", frame)
}

// ReadIoctlRequest reads the remainder of a request frame after
// [ReadHandshake] returned [RoleIoctlRequest].
func ReadIoctlRequest(r io.Reader) (IoctlRequest, error) {
	header := make([]byte, InstanceNumberLength+1+RequestCodeSize+1+1)
	if err := readField(r, "ioctl request header", header); err != nil {
		return IoctlRequest{}, err
	}

	var request IoctlRequest
	offset := 0
	request.InstanceNumber = byteOrder.Uint32(header[offset:])
	offset += InstanceNumberLength
	request.Half = identity.Half(header[offset])
	offset++
	request.RequestCode = readRequestCode(header[offset:])
	offset += RequestCodeSize
	request.ArgType = ArgType(header[offset])
	offset++
	payloadLength := int(header[offset])

	if payloadLength > 0 {
		request.Payload = make([]byte, payloadLength)
		if err := readField(r, "ioctl request payload", request.Payload); err != nil {
			return IoctlRequest{}, err
		}
	}

	if err := request.Validate(); err != nil {
		return IoctlRequest{}, err
	}
	return request, nil
}

func appendRequestCode(frame []byte, code uint) []byte {
	if RequestCodeSize == 8 {
		return byteOrder.AppendUint64(frame, uint64(code))
	}
	return byteOrder.AppendUint32(frame, uint32(code))
}

func readRequestCode(buffer []byte) uint {
	if RequestCodeSize == 8 {
		return uint(byteOrder.Uint64(buffer))
	}
	return uint(byteOrder.Uint32(buffer))
}

// IoctlResponse is the manager's answer to an [IoctlRequest].
type IoctlResponse struct {
	// Image is the (possibly modified) pointed-at object. Present only
	// for pointer-shaped requests, with the request payload's size.
	Image []byte

	// ReturnCode is the ioctl return value. Negative means failure.
	ReturnCode int32

	// ErrorCode is the errno accompanying a negative ReturnCode.
	ErrorCode int32
}

// WriteIoctlResponse writes a response for a request tagged argType.
// The image must match the tag's response size exactly.
func WriteIoctlResponse(w io.Writer, argType ArgType, response IoctlResponse) error {
	if len(response.Image) != argType.ResponseImageSize() {
		return invalidField("response image", "%s image must be %d bytes, got %d",
			argType, argType.ResponseImageSize(), len(response.Image))
	}
	frame := make([]byte, 0, len(response.Image)+8)
	frame = append(frame, response.Image...)
	frame = byteOrder.AppendUint32(frame, uint32(response.ReturnCode))
	frame = byteOrder.AppendUint32(frame, uint32(response.ErrorCode))
	return writeField(w, "ioctl response", frame)
}

// ReadIoctlResponse reads a response to a request tagged argType. Each
// field is read separately so that a truncation names the field it
// happened in.
func ReadIoctlResponse(r io.Reader, argType ArgType) (IoctlResponse, error) {
	if !argType.Valid() {
		return IoctlResponse{}, invalidField("argument type", "%s has no response", argType)
	}

	var response IoctlResponse
	if size := argType.ResponseImageSize(); size > 0 {
		response.Image = make([]byte, size)
		if err := readField(r, "response image", response.Image); err != nil {
			return IoctlResponse{}, err
		}
	}

	var code [4]byte
	if err := readField(r, "return code", code[:]); err != nil {
		return IoctlResponse{}, err
	}
	response.ReturnCode = int32(byteOrder.Uint32(code[:]))

	if err := readField(r, "error code", code[:]); err != nil {
		return IoctlResponse{}, err
	}
	response.ErrorCode = int32(byteOrder.Uint32(code[:]))

	return response, nil
}

// String summarizes the request for logs.
func (r IoctlRequest) String() string {
	return fmt.Sprintf("ioctl(instance=%d %s request=0x%x arg=%s len=%d)",
		r.InstanceNumber, r.Half, r.RequestCode, r.ArgType, len(r.Payload))
}
