package audio

import "encoding/binary"

const (
	bitsPerSample = 16

	// unknownSize marks RIFF and data lengths of a WAV whose length is not known up front.
	unknownSize = 0xFFFFFFFF
)

// wavHeader builds a 44-byte PCM16 header. dataSize == unknownSize yields a streaming header.
func wavHeader(dataSize uint32, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	riffSize := uint32(unknownSize)
	if dataSize != unknownSize {
		riffSize = 36 + dataSize
	}

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], riffSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)
	return header
}

// FinalizeWAV rewrites the size fields of a streamed WAV once its full length is known.
// Data that does not start with a RIFF header is returned unchanged.
func FinalizeWAV(data []byte) []byte {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[36:40]) != "data" {
		return data
	}
	out := append([]byte(nil), data...)
	payload := uint32(len(out) - 44)
	binary.LittleEndian.PutUint32(out[4:8], 36+payload)
	binary.LittleEndian.PutUint32(out[40:44], payload)
	return out
}
