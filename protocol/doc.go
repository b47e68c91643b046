package protocol

// This package implements the parsing and serialising of the Remote Framebuffer
// (RFB) protocol, the protocol VNC servers and viewers speak.
//
// RFB is a binary protocol. All multi-byte integers are big endian except for
// pixel values, which use the byte order of the pixel format the client asked
// for.
//
// Parsing is incremental. Every message has a grammar, built from the rgram
// combinators, that can be fed bytes in chunks of any size. A grammar is done
// once it has seen a whole message, at which point `Get()` returns the decoded
// message. Grammars are reset and reused for the next message.
//
// Serialising is the opposite direction: every message type implements
// `Marshaler`.
//
// === Handshake
//
// The server speaks first. Both sides exchange a ProtocolVersion and settle
// on the lower of the two.
//
//   ```
//   < RFB 003.008\n
//   > RFB 003.008\n
//   ```
//
// ==== Security, 3.3
//
// The server decides on a security type and sends it as a u32.
//
//   ```
//   < u32 security-type
//   ```
//
// ==== Security, 3.7 and 3.8
//
// The server offers a list of security types, the client picks one and the
// server replies with a security result. A count of zero means the connection
// failed.
//
//   ```
//   < u8 count, u8 security-type[count]
//   > u8 security-type
//   < u32 status
//   ```
//
// Only security type NONE (1) is supported.
//
// ==== Initialisation
//
//   ```
//   > u8 shared-flag
//   < u16 width, u16 height, PIXEL_FORMAT, u32 name-length, u8 name[name-length]
//   ```
//
// PIXEL_FORMAT is 16 bytes:
//
//   ```
//   u8 bits-per-pixel, u8 depth, u8 big-endian-flag, u8 true-colour-flag,
//   u16 red-max, u16 green-max, u16 blue-max,
//   u8 red-shift, u8 green-shift, u8 blue-shift, 3 bytes padding
//   ```
//
// === Client messages
//
// Every client message starts with a u8 message type.
//
// - `0 SetPixelFormat` - 3 padding, PIXEL_FORMAT
// - `2 SetEncodings` - 1 padding, u16 count, s32 encoding[count]
// - `3 FramebufferUpdateRequest` - u8 incremental, u16 x, y, width, height
// - `4 KeyEvent` - u8 down-flag, 2 padding, u32 key
// - `5 PointerEvent` - u8 button-mask, u16 x, y
// - `6 ClientCutText` - 3 padding, u32 length, u8 text[length]
//
// === Server messages
//
// - `0 FramebufferUpdate` - 1 padding, u16 count, RECTANGLE[count]
// - `2 Bell` - nothing further
// - `3 ServerCutText` - 3 padding, u32 length, u8 text[length]
//
// RECTANGLE is a header followed by pixel data in the given encoding:
//
//   ```
//   u16 x, u16 y, u16 width, u16 height, s32 encoding-type, ...
//   ```
//
// Only RAW (0) is produced and understood: width * height pixels, row by row.
// Any other encoding type makes the server message grammar fault.
//
// Text (desktop names, cut text) is ISO-8859-1.
