//go:build cgo

package jxl

/*
#cgo pkg-config: libjxl libjxl_threads
#include <stdlib.h>
#include <string.h>
#include <jxl/encode.h>
#include <jxl/decode.h>
#include <jxl/thread_parallel_runner.h>

static JxlEncoderStatus set_encoder_runner(JxlEncoder *enc, void *runner) {
    return JxlEncoderSetParallelRunner(enc, JxlThreadParallelRunner, runner);
}

static JxlDecoderStatus set_decoder_runner(JxlDecoder *dec, void *runner) {
    return JxlDecoderSetParallelRunner(dec, JxlThreadParallelRunner, runner);
}

static JxlEncoderStatus set_linear_color(JxlEncoder *enc, int gray) {
    JxlColorEncoding ce;
    memset(&ce, 0, sizeof(ce));
    ce.color_space = gray ? JXL_COLOR_SPACE_GRAY : JXL_COLOR_SPACE_RGB;
    ce.white_point = JXL_WHITE_POINT_D65;
    ce.primaries = JXL_PRIMARIES_SRGB;
    ce.transfer_function = JXL_TRANSFER_FUNCTION_LINEAR;
    ce.rendering_intent = JXL_RENDERING_INTENT_PERCEPTUAL;
    return JxlEncoderSetColorEncoding(enc, &ce);
}

static void set_animation(JxlBasicInfo *info) {
    info->have_animation = JXL_TRUE;
    info->animation.tps_numerator = 10;
    info->animation.tps_denominator = 1;
    info->animation.num_loops = 0;
    info->animation.have_timecodes = JXL_FALSE;
}

static JxlEncoderStatus set_frame_duration(JxlEncoderFrameSettings *settings, uint32_t ticks) {
    JxlFrameHeader header;
    JxlEncoderInitFrameHeader(&header);
    header.duration = ticks;
    return JxlEncoderSetFrameHeader(settings, &header);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"
)

// Available reports whether the libjxl engine is linked in
const Available = true

var settingIDs = map[settingID]C.JxlEncoderFrameSettingId{
	settingModular:           C.JXL_ENC_FRAME_SETTING_MODULAR,
	settingResponsive:        C.JXL_ENC_FRAME_SETTING_RESPONSIVE,
	settingGroupOrder:        C.JXL_ENC_FRAME_SETTING_GROUP_ORDER,
	settingGroupOrderCenterX: C.JXL_ENC_FRAME_SETTING_GROUP_ORDER_CENTER_X,
	settingGroupOrderCenterY: C.JXL_ENC_FRAME_SETTING_GROUP_ORDER_CENTER_Y,
	settingProgressiveDC:     C.JXL_ENC_FRAME_SETTING_PROGRESSIVE_DC,
	settingProgressiveAC:     C.JXL_ENC_FRAME_SETTING_PROGRESSIVE_AC,
	settingEffort:            C.JXL_ENC_FRAME_SETTING_EFFORT,
}

func jxlBool(b bool) C.JXL_BOOL {
	if b {
		return C.JXL_TRUE
	}
	return C.JXL_FALSE
}

func pixelFormat(format PixelFormat) C.JxlPixelFormat {
	pf := C.JxlPixelFormat{
		num_channels: C.uint32_t(format.NumChannels()),
		data_type:    C.JXL_TYPE_UINT8,
		endianness:   C.JXL_NATIVE_ENDIAN,
		align:        0,
	}
	if format.SampleType() == Uint16 {
		pf.data_type = C.JXL_TYPE_UINT16
	}
	return pf
}

// newRunner returns nil when the thread pool cannot be created; the engines
// then run single threaded.
func newRunner() unsafe.Pointer {
	runner := C.JxlThreadParallelRunnerCreate(nil, C.size_t(runtime.NumCPU()))
	if runner == nil {
		slog.Debug("jxl thread runner unavailable, running single threaded")
	}
	return runner
}

func freeRunner(runner unsafe.Pointer) {
	if runner != nil {
		C.JxlThreadParallelRunnerDestroy(runner)
	}
}

func encode(pixels []byte, width, height uint32, format PixelFormat, fs frameSettings) ([]byte, error) {
	return encodeFrames([][]byte{pixels}, width, height, format, fs)
}

// encodeFrames writes one frame per buffer. More than one buffer produces an
// animation with one tick per frame.
func encodeFrames(frames [][]byte, width, height uint32, format PixelFormat, fs frameSettings) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrConfiguration)
	}
	enc := C.JxlEncoderCreate(nil)
	if enc == nil {
		return nil, fmt.Errorf("%w: cannot create encoder", ErrEncoding)
	}
	defer C.JxlEncoderDestroy(enc)

	runner := newRunner()
	defer freeRunner(runner)
	if runner != nil {
		if st := C.set_encoder_runner(enc, runner); st != C.JXL_ENC_SUCCESS {
			return nil, &StatusError{Op: "JxlEncoderSetParallelRunner", Status: int(st), Err: ErrConfiguration}
		}
	}

	var info C.JxlBasicInfo
	C.JxlEncoderInitBasicInfo(&info)
	info.xsize = C.uint32_t(width)
	info.ysize = C.uint32_t(height)
	info.bits_per_sample = C.uint32_t(format.BitsPerSample())
	info.exponent_bits_per_sample = 0
	info.num_color_channels = C.uint32_t(format.NumChannels())
	info.num_extra_channels = 0
	info.alpha_bits = 0
	info.uses_original_profile = C.JXL_TRUE
	animated := len(frames) > 1
	if animated {
		C.set_animation(&info)
	}
	if st := C.JxlEncoderSetBasicInfo(enc, &info); st != C.JXL_ENC_SUCCESS {
		return nil, &StatusError{Op: "JxlEncoderSetBasicInfo", Status: int(st), Err: ErrConfiguration}
	}
	gray := C.int(0)
	if format.IsGrayscale() {
		gray = 1
	}
	if st := C.set_linear_color(enc, gray); st != C.JXL_ENC_SUCCESS {
		return nil, &StatusError{Op: "JxlEncoderSetColorEncoding", Status: int(st), Err: ErrConfiguration}
	}

	settings := C.JxlEncoderFrameSettingsCreate(enc, nil)
	if settings == nil {
		return nil, fmt.Errorf("%w: cannot create frame settings", ErrConfiguration)
	}
	if err := applySettings(settings, fs); err != nil {
		return nil, err
	}

	pf := pixelFormat(format)
	need := format.BufferSize(width, height)
	for i, pixels := range frames {
		if len(pixels) < need {
			return nil, fmt.Errorf("%w: frame %d holds %d bytes, need %d", ErrConfiguration, i, len(pixels), need)
		}
		if animated {
			if st := C.set_frame_duration(settings, 1); st != C.JXL_ENC_SUCCESS {
				return nil, &StatusError{Op: "JxlEncoderSetFrameHeader", Status: int(st), Err: ErrConfiguration}
			}
		}
		st := C.JxlEncoderAddImageFrame(settings, &pf, unsafe.Pointer(&pixels[0]), C.size_t(need))
		runtime.KeepAlive(pixels)
		if st != C.JXL_ENC_SUCCESS {
			return nil, &StatusError{Op: "JxlEncoderAddImageFrame", Status: int(st), Err: ErrEncoding}
		}
	}
	C.JxlEncoderCloseInput(enc)
	return drainOutput(enc)
}

func applySettings(settings *C.JxlEncoderFrameSettings, fs frameSettings) error {
	if st := C.JxlEncoderSetFrameLossless(settings, jxlBool(fs.lossless)); st != C.JXL_ENC_SUCCESS {
		return &StatusError{Op: "JxlEncoderSetFrameLossless", Status: int(st), Err: ErrConfiguration}
	}
	if !fs.lossless {
		if st := C.JxlEncoderSetFrameDistance(settings, C.float(fs.distance)); st != C.JXL_ENC_SUCCESS {
			return &StatusError{Op: "JxlEncoderSetFrameDistance", Status: int(st), Err: ErrConfiguration}
		}
	}
	for _, o := range fs.options {
		id, ok := settingIDs[o.id]
		if !ok {
			return fmt.Errorf("%w: unmapped frame setting %d", ErrConfiguration, o.id)
		}
		if st := C.JxlEncoderFrameSettingsSetOption(settings, id, C.int64_t(o.value)); st != C.JXL_ENC_SUCCESS {
			return &StatusError{Op: fmt.Sprintf("JxlEncoderFrameSettingsSetOption(%d=%d)", int(id), o.value), Status: int(st), Err: ErrConfiguration}
		}
	}
	return nil
}

// drainOutput collects the codestream into C memory, doubling the buffer
// until the encoder reports success.
func drainOutput(enc *C.JxlEncoder) ([]byte, error) {
	size := C.size_t(initialOutputSize)
	buf := C.malloc(size)
	if buf == nil {
		return nil, fmt.Errorf("%w: out of memory", ErrEncoding)
	}
	defer func() { C.free(buf) }()

	next := (*C.uint8_t)(buf)
	avail := size
	for {
		st := C.JxlEncoderProcessOutput(enc, &next, &avail)
		if st == C.JXL_ENC_SUCCESS {
			break
		}
		if st != C.JXL_ENC_NEED_MORE_OUTPUT {
			return nil, &StatusError{Op: "JxlEncoderProcessOutput", Status: int(st), Err: ErrEncoding}
		}
		written := uintptr(unsafe.Pointer(next)) - uintptr(buf)
		size *= 2
		grown := C.realloc(buf, size)
		if grown == nil {
			return nil, fmt.Errorf("%w: out of memory growing output to %d bytes", ErrEncoding, size)
		}
		buf = grown
		next = (*C.uint8_t)(unsafe.Add(buf, written))
		avail = size - C.size_t(written)
	}
	written := int(uintptr(unsafe.Pointer(next)) - uintptr(buf))
	out := make([]byte, written)
	copy(out, unsafe.Slice((*byte)(buf), written))
	return out, nil
}

func imageInfo(info *C.JxlBasicInfo) ImageInfo {
	return ImageInfo{
		Width:         uint32(info.xsize),
		Height:        uint32(info.ysize),
		BitsPerSample: uint32(info.bits_per_sample),
		NumChannels:   uint32(info.num_color_channels),
		IsGrayscale:   info.num_color_channels == 1,
	}
}

// decode runs the decoder over data. With infoOnly it stops at the header
// and format is ignored.
func decode(data []byte, format PixelFormat, infoOnly bool) (ImageInfo, []byte, error) {
	var result ImageInfo

	dec := C.JxlDecoderCreate(nil)
	if dec == nil {
		return result, nil, fmt.Errorf("%w: cannot create decoder", ErrDecoding)
	}
	defer C.JxlDecoderDestroy(dec)

	if !infoOnly {
		runner := newRunner()
		defer freeRunner(runner)
		if runner != nil {
			if st := C.set_decoder_runner(dec, runner); st != C.JXL_DEC_SUCCESS {
				return result, nil, &StatusError{Op: "JxlDecoderSetParallelRunner", Status: int(st), Err: ErrDecoding}
			}
		}
	}

	events := C.int(C.JXL_DEC_BASIC_INFO)
	if !infoOnly {
		events |= C.JXL_DEC_FULL_IMAGE
	}
	if st := C.JxlDecoderSubscribeEvents(dec, events); st != C.JXL_DEC_SUCCESS {
		return result, nil, &StatusError{Op: "JxlDecoderSubscribeEvents", Status: int(st), Err: ErrDecoding}
	}

	// the decoder keeps pointers into both buffers between calls
	input := C.CBytes(data)
	defer C.free(input)
	if st := C.JxlDecoderSetInput(dec, (*C.uint8_t)(input), C.size_t(len(data))); st != C.JXL_DEC_SUCCESS {
		return result, nil, &StatusError{Op: "JxlDecoderSetInput", Status: int(st), Err: ErrDecoding}
	}
	C.JxlDecoderCloseInput(dec)

	pf := pixelFormat(format)
	var out unsafe.Pointer
	var outSize C.size_t
	defer func() {
		if out != nil {
			C.free(out)
		}
	}()

	for {
		st := C.JxlDecoderProcessInput(dec)
		switch st {
		case C.JXL_DEC_ERROR:
			return result, nil, &StatusError{Op: "JxlDecoderProcessInput", Status: int(st), Err: ErrDecoding}
		case C.JXL_DEC_NEED_MORE_INPUT:
			return result, nil, ErrTruncated
		case C.JXL_DEC_BASIC_INFO:
			var info C.JxlBasicInfo
			if st := C.JxlDecoderGetBasicInfo(dec, &info); st != C.JXL_DEC_SUCCESS {
				return result, nil, &StatusError{Op: "JxlDecoderGetBasicInfo", Status: int(st), Err: ErrDecoding}
			}
			result = imageInfo(&info)
			if infoOnly {
				return result, nil, nil
			}
		case C.JXL_DEC_NEED_IMAGE_OUT_BUFFER:
			// bound once; a later request reuses the same buffer
			if out == nil {
				if st := C.JxlDecoderImageOutBufferSize(dec, &pf, &outSize); st != C.JXL_DEC_SUCCESS {
					return result, nil, &StatusError{Op: "JxlDecoderImageOutBufferSize", Status: int(st), Err: ErrDecoding}
				}
				out = C.malloc(outSize)
				if out == nil {
					return result, nil, fmt.Errorf("%w: out of memory for %d byte frame", ErrDecoding, outSize)
				}
			}
			if st := C.JxlDecoderSetImageOutBuffer(dec, &pf, out, outSize); st != C.JXL_DEC_SUCCESS {
				return result, nil, &StatusError{Op: "JxlDecoderSetImageOutBuffer", Status: int(st), Err: ErrDecoding}
			}
		case C.JXL_DEC_FULL_IMAGE, C.JXL_DEC_SUCCESS:
			// first frame only; later animation frames are never decoded
			if infoOnly {
				return result, nil, fmt.Errorf("%w: no basic info in codestream", ErrDecoding)
			}
			if out == nil {
				return result, nil, fmt.Errorf("%w: no image in codestream", ErrDecoding)
			}
			pixels := make([]byte, int(outSize))
			copy(pixels, unsafe.Slice((*byte)(out), int(outSize)))
			return result, pixels, nil
		default:
			return result, nil, &StatusError{Op: "JxlDecoderProcessInput", Status: int(st), Err: ErrDecoding}
		}
	}
}
