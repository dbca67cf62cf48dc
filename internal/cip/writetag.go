package cip

import (
	"github.com/tturner/absim/internal/tagstore"
	"github.com/tturner/absim/internal/wire"
)

// HandleWriteTag parses and executes a Write Tag / Write Tag Fragmented
// request, writing the CIP reply into respWindow. It returns the number
// of bytes written.
func HandleWriteTag(service ServiceCode, reqPayload wire.Window, respWindow wire.Window, store *tagstore.Store) (int, error) {
	fragmented := service == ServiceWriteTagFragmented

	pathSizeWords, err := reqPayload.ReadUint8(0)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
	}
	epathLen := int(pathSizeWords) * 2
	epathWindow, err := reqPayload.Sub(1, epathLen)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
	}
	segs, err := ParseTagEPATH(epathWindow)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
	}
	name, ok := TagName(segs)
	if !ok {
		return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
	}
	indices := Indices(segs)

	pos := 1 + epathLen
	dataType, err := reqPayload.ReadUint16(pos)
	pos += 2
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
	}
	elementCount, err := reqPayload.ReadUint16(pos)
	pos += 2
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
	}

	var byteOffset uint32
	if fragmented {
		byteOffset, err = reqPayload.ReadUint32(pos)
		pos += 4
		if err != nil {
			return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
		}
	}

	tag, err := store.FindByName(name)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusPathDestUnknown, nil)
	}

	if tagstore.DataType(dataType) != tag.Type {
		return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
	}
	if int(elementCount) > tag.ElemCount {
		return writeStatusOnly(respWindow, service, StatusExtended, []uint16{ExtTooMuchData})
	}

	elementOffset := 0
	if len(indices) > 0 {
		if len(indices) != tag.NumDimensions {
			return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
		}
		for i, idx := range indices {
			if idx < 0 || idx >= tag.Dims[i] {
				return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
			}
		}
		elementOffset = rowMajorOffset(indices, tag.Dims)
	}

	// A fragmented write carries only the current fragment's bytes, so
	// the payload is whatever remains of the request rather than
	// element_count * elem_size.
	payload, err := reqPayload.Sub(pos, reqPayload.Len()-pos)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
	}

	startByte := elementOffset*tag.ElemSize + int(byteOffset)
	if startByte+payload.Len() > len(tag.Data) {
		return writeStatusOnly(respWindow, service, StatusExtended, []uint16{ExtTooMuchData})
	}
	if err := store.Write(tag, startByte, payload.Bytes()); err != nil {
		return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
	}

	return writeStatusOnly(respWindow, service, StatusSuccess, nil)
}
