package audio

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
)

// Concat joins encoded audio buffers end to end and returns them as one WAV file.
//
// No buffers yields an empty slice, and a single buffer is returned as-is
// without re-encoding. Otherwise every buffer is decoded concurrently and
// copied into the output in input order.
//
// The first buffer decides the output sample rate and channel count. Later
// buffers are copied as if they matched: extra channels are dropped, missing
// channels stay silent and differing sample rates are not resampled.
func Concat(ctx context.Context, decoder repositories.AudioDecoder, buffers [][]byte) ([]byte, error) {
	switch len(buffers) {
	case 0:
		return []byte{}, nil
	case 1:
		return buffers[0], nil
	}

	decoded, err := decodeAll(ctx, decoder, buffers)
	if err != nil {
		return nil, err
	}

	return EncodeWAV(Join(decoded)), nil
}

// Join concatenates decoded buffers sample by sample per channel.
func Join(decoded []*entities.DecodedAudio) *entities.DecodedAudio {
	if len(decoded) == 0 {
		return entities.NewDecodedAudio(0, 0, 0)
	}

	first := decoded[0]
	totalLength := lo.SumBy(decoded, func(a *entities.DecodedAudio) int {
		return a.Length()
	})
	numberOfChannels := first.NumberOfChannels()

	result := entities.NewDecodedAudio(numberOfChannels, totalLength, first.SampleRate)

	offset := 0
	for _, buffer := range decoded {
		for ch := 0; ch < numberOfChannels && ch < buffer.NumberOfChannels(); ch++ {
			copy(result.Channels[ch][offset:], buffer.Channels[ch])
		}
		offset += buffer.Length()
	}

	return result
}

func decodeAll(ctx context.Context, decoder repositories.AudioDecoder, buffers [][]byte) ([]*entities.DecodedAudio, error) {
	decoded := make([]*entities.DecodedAudio, len(buffers))

	g, ctx := errgroup.WithContext(ctx)
	for i, buffer := range buffers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pcm, err := decoder.Decode(buffer)
			if err != nil {
				return indexDecodeError(i, err)
			}
			decoded[i] = pcm
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decoded, nil
}

func indexDecodeError(index int, err error) error {
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) {
		return &domain.DecodeError{Index: index, Err: decodeErr.Err}
	}
	return &domain.DecodeError{Index: index, Err: err}
}
