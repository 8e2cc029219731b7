// Package audioio models mono audio clips and handles the WAV and MP3
// file formats used by the dubbing pipeline. The speech backend delivers
// MP3; everything downstream works on 16-bit mono PCM.
package audioio
