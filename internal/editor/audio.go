package editor

import (
	"context"

	"github.com/droneedit/droneedit-agent/internal/host"
)

// TargetLevel is the loudness audio tracks are normalized to, in dBFS.
const TargetLevel = -1.0

// NoiseReductionEffect is the host track effect used for noise reduction.
const NoiseReductionEffect = "Noise Reduction"

// AudioOptions selects the per-track operations of EnhanceAudio.
type AudioOptions struct {
	Normalize bool
	Denoise   bool
}

// AudioReport counts per-track successes.
type AudioReport struct {
	Tracks     int
	Normalized int
	Denoised   int
}

// OK reports whether at least one track was processed successfully.
func (r AudioReport) OK() bool {
	return r.Normalized > 0 || r.Denoised > 0
}

// AudioTrackCount returns the number of audio tracks on tl.
func (d *Delegate) AudioTrackCount(ctx context.Context, tl *host.Object) int {
	if tl == nil {
		return 0
	}
	v, ok := d.call(ctx, tl, "GetTrackCount", "audio")
	if !ok {
		return 0
	}
	n, _ := v.Int()
	return int(n)
}

// NormalizeTrack sets the volume of an audio track so its current level
// lands on TargetLevel.
func (d *Delegate) NormalizeTrack(ctx context.Context, tl *host.Object, track int) bool {
	if tl == nil || track < 1 {
		d.invalid("normalize track", "nil timeline or bad track index")
		return false
	}
	v, ok := d.call(ctx, tl, "GetAudioTrackLevel", track)
	if !ok {
		return false
	}
	level, ok := v.Float()
	if !ok {
		d.logger.Warn("host reported no level for track", "track", track)
		return false
	}
	gain := TargetLevel - level
	v, ok = d.call(ctx, tl, "SetAudioTrackVolume", track, gain)
	if !ok || !v.Truthy() {
		return false
	}
	d.logger.Debug("normalized track", "track", track, "level_db", level, "gain_db", gain)
	return true
}

// ReduceNoise applies the host's noise reduction effect to an audio track.
func (d *Delegate) ReduceNoise(ctx context.Context, tl *host.Object, track int) bool {
	if tl == nil || track < 1 {
		d.invalid("reduce noise", "nil timeline or bad track index")
		return false
	}
	v, ok := d.call(ctx, tl, "ApplyAudioTrackEffect", track, NoiseReductionEffect)
	return ok && v.Truthy()
}

// EnhanceAudio runs the selected operations on every audio track of tl.
func (d *Delegate) EnhanceAudio(ctx context.Context, tl *host.Object, opts AudioOptions) AudioReport {
	var r AudioReport
	if tl == nil {
		d.invalid("enhance audio", "nil timeline")
		return r
	}
	r.Tracks = d.AudioTrackCount(ctx, tl)
	for track := 1; track <= r.Tracks; track++ {
		if ctx.Err() != nil {
			break
		}
		if opts.Normalize && d.NormalizeTrack(ctx, tl, track) {
			r.Normalized++
		}
		if opts.Denoise && d.ReduceNoise(ctx, tl, track) {
			r.Denoised++
		}
	}
	d.logger.Info("audio enhancement finished",
		"tracks", r.Tracks,
		"normalized", r.Normalized,
		"denoised", r.Denoised,
	)
	return r
}

// TrackMixer binds EnhanceAudio to one timeline.
type TrackMixer struct {
	d  *Delegate
	tl *host.Object
}

// Mixer returns the audio operations of tl.
func (d *Delegate) Mixer(tl *host.Object) TrackMixer {
	return TrackMixer{d: d, tl: tl}
}

func (m TrackMixer) EnhanceAudio(ctx context.Context, opts AudioOptions) AudioReport {
	return m.d.EnhanceAudio(ctx, m.tl, opts)
}
