// Package encoder defines the Converter capability and its ffmpeg-backed
// implementation. The orchestration core never talks to ffmpeg directly; it
// sees only the Converter interface, an options struct, and a progress
// callback, which keeps encoders swappable during retry escalation.
package encoder
