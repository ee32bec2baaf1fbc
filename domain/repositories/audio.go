package repositories

import "github.com/satriahrh/narrator/server/domain/entities"

// AudioDecoder turns an encoded audio buffer into planar PCM
type AudioDecoder interface {
	Decode(data []byte) (*entities.DecodedAudio, error)
}
