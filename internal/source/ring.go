package source

import "fmt"

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // approximate TPACKET3 header
	maxBlockSize     = 4 << 20
)

type ringSize struct {
	frameSize int
	blockSize int
	numBlocks int
}

// sizeRing fits an AF_PACKET ring into bufferMB. The kernel wants frames
// aligned to TPACKET_ALIGNMENT, blocks that are a multiple of the page size
// and hold a whole number of frames.
func sizeRing(bufferMB, snapLen, pageSize int) (ringSize, error) {
	if bufferMB <= 0 {
		return ringSize{}, fmt.Errorf("ring buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return ringSize{}, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return ringSize{}, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frame := alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	block := lcm(pageSize, frame)
	if block > maxBlockSize {
		// page-sized frames keep the block a multiple of both
		frame = alignUp(frame, pageSize)
		block = frame * max(1, maxBlockSize/frame)
	}

	blocks := bufferMB << 20 / block
	if blocks < 1 {
		blocks = 1
	}
	return ringSize{frameSize: frame, blockSize: block, numBlocks: blocks}, nil
}

func alignUp(n, to int) int {
	return (n + to - 1) / to * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
