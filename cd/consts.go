package cd

// SampleRate is the number of samples per second. All Redbook audio
// CDs use 44.1KHz.
const SampleRate = 44100

// BitsPerSample is the sample depth of CD-DA audio. Samples are signed.
const BitsPerSample = 16

// BytesPerSample is 2 bytes, representing signed 16-bit samples.
const BytesPerSample = BitsPerSample / 8

// Channels is the number of audio channels in the data. All Redbook
// audio CDs are stereo.
const Channels = 2

// SectorsPerSecond is the number of sectors in one second of audio.
// A sector (or frame, in MM:SS:FF notation) is the smallest addressable
// unit of a track, 1/75th of a second.
const SectorsPerSecond = 75

// SamplesPerSector is the number of 16-bit samples per channel in one sector (588).
const SamplesPerSector = SampleRate / SectorsPerSecond

// BytesPerSector is the number of bytes of audio contained in one sector of
// CD data, 2352 bytes.
const BytesPerSector = SampleRate * Channels * BytesPerSample / SectorsPerSecond

// MaxTracks is the largest number of tracks the CD-DA format allows.
const MaxTracks = 99
