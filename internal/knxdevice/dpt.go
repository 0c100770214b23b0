package knxdevice

import (
	"fmt"
	"math"
)

// Datapoint Type encoding constants. A ComObject only knows its fixed-size
// or variable byte length (see ComObjectType); DPT is the semantic layer
// on top, translating between that raw byte string and the value a host
// application actually wants to read or write.
const (
	dpt5MaxValue     = 255
	dpt5AngleMax     = 360
	dpt9MaxExponent  = 15
	dpt17MaxScene    = 63
	dpt17SceneMask   = 0x3F
	dptRGBBytes      = 3
	dptByteShift     = 8
	dpt9MantissaMask = 0x07FF
)

// DPT identifies a KNX Datapoint Type in "major.minor" form (e.g. "1.001",
// "9.001"). Com-objects do not carry a DPT of their own in the device
// object model (the wire format only cares about byte length), so this is
// purely a convenience layer for host applications that know which DPT a
// given com-object represents.
type DPT string

// Datapoint types exercised by EncodeDPT*/DecodeDPT* below.
const (
	DPTSwitch    DPT = "1.001"
	DPTBool      DPT = "1.002"
	DPTEnable    DPT = "1.003"
	DPTStep      DPT = "1.007"
	DPTUpDown    DPT = "1.008"
	DPTOpenClose DPT = "1.009"
	DPTStart     DPT = "1.010"
	DPTTrigger   DPT = "1.017"

	DPTDimmingControl DPT = "3.007"
	DPTBlindControl   DPT = "3.008"

	DPTPercentage DPT = "5.001"
	DPTAngle      DPT = "5.003"
	DPTPercentU8  DPT = "5.004"

	DPTTemperature DPT = "9.001"
	DPTLux         DPT = "9.004"
	DPTSpeed       DPT = "9.005"
	DPTHumidity    DPT = "9.007"
	DPTAirQuality  DPT = "9.008"

	DPTSceneNumber  DPT = "17.001"
	DPTSceneControl DPT = "18.001"

	DPTColourRGB DPT = "232.600"
)

// EncodeDPT1 encodes a boolean to the 1-bit KNX format backing
// DPTSwitch/Bool/Enable/Step/UpDown/OpenClose/Start/Trigger. The result is
// a single byte, matching the at-rest storage of a Bit1 ComObject.
func EncodeDPT1(value bool) []byte {
	if value {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// DecodeDPT1 decodes a 1-bit KNX value to a boolean.
func DecodeDPT1(data []byte) (bool, error) {
	if len(data) < 1 {
		return false, fmt.Errorf("%w: DPT1 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	return (data[0] & 0x01) != 0, nil
}

// EncodeDPT3 encodes a dimming/blind control value (DPTDimmingControl,
// DPTBlindControl): direction plus a 0..7 step count, where 0 means stop.
func EncodeDPT3(increase bool, steps uint8) []byte {
	var value byte
	if increase {
		value = 0x08
	}
	value |= steps & 0x07
	return []byte{value}
}

// DecodeDPT3 decodes a dimming/blind control value.
func DecodeDPT3(data []byte) (increase bool, steps uint8, err error) {
	if len(data) < 1 {
		return false, 0, fmt.Errorf("%w: DPT3 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	increase = (data[0] & 0x08) != 0
	steps = data[0] & 0x07
	return increase, steps, nil
}

// EncodeDPT5 encodes a percentage (0-100) as DPTPercentage: scaled 0-255.
func EncodeDPT5(percent float64) []byte {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	return []byte{uint8(math.Round(percent * 255 / 100))}
}

// DecodeDPT5 decodes a DPTPercentage value back to 0-100.
func DecodeDPT5(data []byte) (float64, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: DPT5 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	return float64(data[0]) * 100 / dpt5MaxValue, nil
}

// EncodeDPT5Angle encodes an angle (0-360) as DPTAngle: scaled 0-255.
func EncodeDPT5Angle(angle float64) []byte {
	if angle < 0 {
		angle = 0
	} else if angle > dpt5AngleMax {
		angle = dpt5AngleMax
	}
	return []byte{uint8(math.Round(angle * dpt5MaxValue / dpt5AngleMax))}
}

// DecodeDPT5Angle decodes a DPTAngle value back to degrees.
func DecodeDPT5Angle(data []byte) (float64, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: DPT5 angle requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	return float64(data[0]) * dpt5AngleMax / dpt5MaxValue, nil
}

// EncodeDPT9 encodes a float as the 2-byte KNX floating point format
// backing DPTTemperature/Lux/Speed/Humidity/AirQuality:
//
//	byte 0: SEEE EMMM (sign, exponent high, mantissa high)
//	byte 1: MMMM MMMM (mantissa low)
//	value  = (0.01 x mantissa) x 2^exponent
func EncodeDPT9(value float64) ([]byte, error) {
	if value < -671088.64 || value > 670433.28 {
		return nil, fmt.Errorf("%w: DPT9 value out of range: %.2f (valid: -671088.64 to 670433.28)", ErrEncodingFailed, value)
	}

	var sign uint16
	if value < 0 {
		sign = 0x8000
		value = -value
	}

	exp := 0
	mantissa := value * 100

	limit := 2047.0
	if sign != 0 {
		limit = 2048
	}
	for mantissa > limit {
		mantissa /= 2
		exp++
	}

	if exp > dpt9MaxExponent {
		return nil, fmt.Errorf("%w: DPT9 exponent overflow for value %.2f", ErrEncodingFailed, value)
	}

	m := int16(mantissa)
	if sign != 0 {
		m = -m
	}

	encoded := sign | (uint16(exp) << 11) | (uint16(m) & 0x07FF) //nolint:gosec // exp bounded above
	return []byte{byte(encoded >> dptByteShift), byte(encoded)}, nil
}

// DecodeDPT9 decodes a 2-byte KNX floating point value.
func DecodeDPT9(data []byte) (float64, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: DPT9 requires 2 bytes, got %d", ErrDecodingFailed, len(data))
	}

	raw := uint16(data[0])<<8 | uint16(data[1])
	if raw == 0x7FFF { //nolint:mnd // KNX DPT 9.x invalid/error sentinel value
		return 0, fmt.Errorf("%w: DPT9 invalid value 0x7FFF (sensor error or not available)", ErrDecodingFailed)
	}

	sign := (raw & 0x8000) != 0
	exp := (raw >> 11) & 0x0F
	mantissa := int16(raw & dpt9MantissaMask) //nolint:gosec // 11-bit value fits in int16
	if sign {
		mantissa |= -0x800
	}

	return float64(mantissa) * 0.01 * math.Pow(2, float64(exp)), nil
}

// EncodeDPT17 encodes a scene number (0-63) as DPTSceneNumber.
func EncodeDPT17(scene uint8) ([]byte, error) {
	if scene > dpt17MaxScene {
		return nil, fmt.Errorf("%w: DPT17 scene must be 0-%d, got %d", ErrEncodingFailed, dpt17MaxScene, scene)
	}
	return []byte{scene & dpt17SceneMask}, nil
}

// DecodeDPT17 decodes a DPTSceneNumber value.
func DecodeDPT17(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: DPT17 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	return data[0] & dpt17SceneMask, nil
}

// EncodeDPT18 encodes a scene control value (DPTSceneControl): a scene
// number plus a learn/recall bit.
func EncodeDPT18(scene uint8, learn bool) ([]byte, error) {
	if scene > dpt17MaxScene {
		return nil, fmt.Errorf("%w: DPT18 scene must be 0-%d, got %d", ErrEncodingFailed, dpt17MaxScene, scene)
	}
	value := scene & dpt17SceneMask
	if learn {
		value |= 0x80
	}
	return []byte{value}, nil
}

// DecodeDPT18 decodes a DPTSceneControl value.
func DecodeDPT18(data []byte) (scene uint8, learn bool, err error) {
	if len(data) < 1 {
		return 0, false, fmt.Errorf("%w: DPT18 requires 1 byte, got %d", ErrDecodingFailed, len(data))
	}
	scene = data[0] & dpt17SceneMask
	learn = (data[0] & 0x80) != 0
	return scene, learn, nil
}

// RGB is a KNX DPTColourRGB value.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// EncodeDPT232 encodes an RGB colour to its 3-byte wire form.
func EncodeDPT232(rgb RGB) []byte {
	return []byte{rgb.R, rgb.G, rgb.B}
}

// DecodeDPT232 decodes a 3-byte RGB colour value.
func DecodeDPT232(data []byte) (RGB, error) {
	if len(data) < dptRGBBytes {
		return RGB{}, fmt.Errorf("%w: DPT232 requires %d bytes, got %d", ErrDecodingFailed, dptRGBBytes, len(data))
	}
	return RGB{R: data[0], G: data[1], B: data[2]}, nil
}
