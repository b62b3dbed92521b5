// Package audio plays the sound cues attached to window transitions.
// Cues are named in transition assets and mapped to WAV, OGG or MP3 files
// in the [audio.cues] config section.
package audio
