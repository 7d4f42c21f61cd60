// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage, with an fsnotify watcher
//   - PromptStore: user-editable prompt templates
package file
