// Package scenes converts scene-boundary JSON into scene annotations. The
// input is either a bare array of scenes or an object with a scenes array.
package scenes
