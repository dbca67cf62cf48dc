package cip

import (
	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/tagstore"
	"github.com/tturner/absim/internal/wire"
)

// readReplyHeaderLen is the 4-byte CIP reply header plus the 2-byte tag
// type code every Read Tag reply leads with.
const readReplyHeaderLen = responseHeaderSize + 2

// HandleReadTag parses and executes a Read Tag / Read Tag Fragmented
// request, writing the CIP reply into respWindow. It returns the number
// of bytes written.
func HandleReadTag(service ServiceCode, reqPayload wire.Window, respWindow wire.Window, store *tagstore.Store, fam family.Family) (int, error) {
	fragmented := service == ServiceReadTagFragmented

	if fam == family.OmronNJNX && fragmented {
		return writeStatusOnly(respWindow, service, StatusUnsupportedService, nil)
	}

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
	elementCount, err := reqPayload.ReadUint16(pos)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
	}
	pos += 2

	var byteOffset uint32
	if fragmented {
		byteOffset, err = reqPayload.ReadUint32(pos)
		if err != nil {
			return writeStatusOnly(respWindow, service, StatusInsufficientData, nil)
		}
	}

	tag, err := store.FindByName(name)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusPathDestUnknown, nil)
	}

	// Omron clients can only ask for a single element; the simulator
	// answers with the whole tag instead.
	if fam == family.OmronNJNX {
		if elementCount != 1 {
			return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
		}
		elementCount = uint16(tag.ElemCount)
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

	// The requested region starts at the index-derived element offset;
	// byte_offset is the client's progress within that region, advanced
	// between fragmented reads.
	regionStart := elementOffset * tag.ElemSize
	totalRequestBytes := int(elementCount) * tag.ElemSize
	if regionStart+totalRequestBytes > len(tag.Data) {
		return writeStatusOnly(respWindow, service, StatusExtended, []uint16{ExtTooMuchData})
	}
	if int(byteOffset) > totalRequestBytes {
		return writeStatusOnly(respWindow, service, StatusExtended, []uint16{ExtTooMuchData})
	}

	remaining := totalRequestBytes - int(byteOffset)
	capacity := respWindow.Len() - readReplyHeaderLen
	status := StatusSuccess
	bytesToCopy := remaining
	if remaining > capacity {
		wholeElements := capacity / tag.ElemSize
		bytesToCopy = wholeElements * tag.ElemSize
		status = StatusPartialTransfer
	}

	copied, err := store.Read(tag, regionStart+int(byteOffset), bytesToCopy)
	if err != nil {
		return writeStatusOnly(respWindow, service, StatusInvalidParameter, nil)
	}

	data, err := EncodeResponse(respWindow, service, status, nil)
	if err != nil {
		return 0, err
	}
	headerLen := respWindow.Len() - data.Len()
	if err := data.WriteUint16(0, uint16(tag.Type)); err != nil {
		return 0, err
	}
	if err := data.CopyIn(2, copied); err != nil {
		return 0, err
	}
	return headerLen + 2 + len(copied), nil
}

func writeStatusOnly(respWindow wire.Window, service ServiceCode, status uint8, extWords []uint16) (int, error) {
	data, err := EncodeResponse(respWindow, service, status, extWords)
	if err != nil {
		return 0, err
	}
	return respWindow.Len() - data.Len(), nil
}

// rowMajorOffset computes ((i0*D1+i1)*D2)+i2 for the given indices and
// the tag's dimensions, generalized to however many indices were supplied.
func rowMajorOffset(indices []int, dims [3]int) int {
	offset := 0
	for i, idx := range indices {
		offset = offset*dimAt(dims, i) + idx
	}
	return offset
}

func dimAt(dims [3]int, i int) int {
	if i < 0 || i > 2 {
		return 1
	}
	return dims[i]
}
