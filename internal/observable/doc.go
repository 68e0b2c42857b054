// Package observable implements the Subscriber Registry used by the polling
// stores.
//
// An Observable holds one value and a list of subscriber callbacks:
//   - Subscribe delivers the current value immediately, then every Set
//   - The StartFunc runs when the first subscriber arrives
//   - The stop callback it returns runs when the last subscriber leaves
//   - Set always notifies, even when the new value equals the old one
package observable
