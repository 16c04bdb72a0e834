// Package recognition provides the speech recognition engine collaborator.
// Frames are appended into caller-delimited blocks; a committed block is
// shipped to a remote recognizer off the capture critical path, with
// results surfacing asynchronously.
package recognition
