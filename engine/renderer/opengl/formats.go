package opengl

// glFormat is one native texture format: the triple OpenGL needs for
// allocation/upload plus property and feature-class flags that gate where
// it is usable.
type glFormat struct {
	name           string
	internalFormat int32
	format         uint32
	typ            uint32
	flags          uint32
}

const (
	// Property flags.
	fCR  = 1 << iota // color-renderable
	fTF              // texture-filterable (linear)
	fF16             // stores float16, transfers float32

	// Feature classes; a format is available when one of its classes is
	// enabled for the context.
	fGL2   // desktop GL 2.x legacy (luminance)
	fGL3   // desktop GL 3.0+
	fES2   // OpenGL ES 2.0+
	fES3   // OpenGL ES 3.0+
	fEXT16 // 16 bit unorm, needs norm16 support
	fEXTF16
	fAPPLE // packed 4:2:2 via apple extension
)

const fCF = fCR | fTF

var glFormats = []glFormat{
	{"r8", glR8, glRed, glUnsignedByte, fCF | fGL3 | fES3},
	{"rg8", glRG8, glRG, glUnsignedByte, fCF | fGL3 | fES3},
	{"rgb8", glRGB8, glRGB, glUnsignedByte, fCF | fGL3 | fES3},
	{"rgba8", glRGBA8, glRGBA, glUnsignedByte, fCF | fGL2 | fGL3 | fES3},
	{"r16", glR16, glRed, glUnsignedShort, fCF | fGL3 | fEXT16},
	{"rg16", glRG16, glRG, glUnsignedShort, fCF | fGL3 | fEXT16},
	{"rgba16", glRGBA16, glRGBA, glUnsignedShort, fCF | fGL2 | fGL3 | fEXT16},

	// Floating point. The f16 variants transfer 32 bit floats so callers
	// never convert on the CPU.
	{"r16f", glR16F, glRed, glFloat, fCF | fF16 | fGL3 | fEXTF16},
	{"rg16f", glRG16F, glRG, glFloat, fCF | fF16 | fGL3 | fEXTF16},
	{"rgb16f", glRGB16F, glRGB, glFloat, fCF | fF16 | fGL3 | fEXTF16},
	{"rgba16f", glRGBA16F, glRGBA, glFloat, fCF | fF16 | fGL3 | fEXTF16},
	{"r32f", glR32F, glRed, glFloat, fCF | fGL3},
	{"rgba32f", glRGBA32F, glRGBA, glFloat, fCF | fGL3},

	// Unsigned integer, for content that has no unorm representation.
	{"r8ui", glR8UI, glRedInteger, glUnsignedByte, fCR | fGL3 | fES3},
	{"rg8ui", glRG8UI, glRGInteger, glUnsignedByte, fCR | fGL3 | fES3},
	{"rgba8ui", glRGBA8UI, glRGBAInteger, glUnsignedByte, fCR | fGL3 | fES3},
	{"r16ui", glR16UI, glRedInteger, glUnsignedShort, fCR | fGL3 | fES3},
	{"rg16ui", glRG16UI, glRGInteger, glUnsignedShort, fCR | fGL3 | fES3},
	{"rgba16ui", glRGBA16UI, glRGBAInteger, glUnsignedShort, fCR | fGL3 | fES3},

	// Legacy luminance formats, the only 1/2 channel choice on GL 2.x.
	{"l8", glL8, glLuminance, glUnsignedByte, fTF | fGL2},
	{"la8", glLA8, glLuminanceAlpha, glUnsignedByte, fTF | fGL2},
	{"l16", glL16, glLuminance, glUnsignedShort, fTF | fGL2 | fEXT16},
	{"la16", glLA16, glLuminanceAlpha, glUnsignedShort, fTF | fGL2 | fEXT16},

	// Packed formats OpenGL supports outright.
	{"rgb565", glRGB565, glRGB, glUnsignedShort565, fCF | fGL2 | fGL3 | fES2},
	{"appleyp", glRGB, glRGBRaw422Apple, glUnsignedShort88Apple, fCF | fAPPLE},
}

// featureFlags returns the feature classes available on this context.
func featureFlags(gl *GL) uint32 {
	var flags uint32
	switch {
	case gl.ES >= 300:
		flags |= fES2 | fES3
		if gl.HasExtension("GL_EXT_texture_norm16") {
			flags |= fEXT16
		}
		if gl.HasExtension("GL_EXT_color_buffer_half_float") {
			flags |= fEXTF16
		}
	case gl.ES >= 200:
		flags |= fES2
	case gl.Version >= 300:
		flags |= fGL3 | fEXT16 | fEXTF16
	default:
		flags |= fGL2 | fEXT16
	}
	if gl.HasExtension("GL_APPLE_rgb_422") {
		flags |= fAPPLE
	}
	return flags
}

// glFormatComponents returns the channel count of a transfer format.
func glFormatComponents(format uint32) int {
	switch format {
	case glRed, glRedInteger, glLuminance:
		return 1
	case glRG, glRGInteger, glLuminanceAlpha:
		return 2
	case glRGB, glRGBRaw422Apple:
		return 3
	case glRGBA, glRGBAInteger:
		return 4
	}
	return 0
}

// glComponentSize returns the bytes per component of a transfer type.
func glComponentSize(typ uint32) int {
	switch typ {
	case glUnsignedByte:
		return 1
	case glUnsignedShort:
		return 2
	case glUnsignedInt, glFloat:
		return 4
	}
	return 0
}

// glBytesPerPixel returns the total transfer size of one pixel, including
// the packed special cases.
func glBytesPerPixel(format, typ uint32) int {
	switch typ {
	case glUnsignedShort565, glUnsignedShort88Apple:
		return 2
	}
	return glComponentSize(typ) * glFormatComponents(format)
}

// isIntegerFormat reports whether the transfer format carries raw integers.
func isIntegerFormat(format uint32) bool {
	switch format {
	case glRedInteger, glRGInteger, glRGBAInteger:
		return true
	}
	return false
}

// determine16BitDepth probes how many bits of a 16 bit unorm texture the
// driver actually keeps. Mobile drivers commonly store 10 bits.
func determine16BitDepth(gl *GL) int {
	if gl.ES > 0 {
		if gl.HasExtension("GL_EXT_texture_norm16") {
			return 16
		}
		return 8
	}
	return 16
}
