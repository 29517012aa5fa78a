// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
)

// EncryptedExt is appended to the file name of encrypted artifacts.
const EncryptedExt = ".age"

// encryptFile writes an age-encrypted copy of src to dst using a scrypt
// recipient derived from password. dst must not exist.
//
//nolint:gosec // G304: both paths are built by the manager
func encryptFile(src, dst, password string, workFactor int) (err error) {
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open plaintext: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("create encrypted artifact: %w", err)
	}
	defer func() {
		if err != nil {
			out.Close()    //nolint:errcheck // already failing
			os.Remove(dst) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	w, err := age.Encrypt(out, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err = io.Copy(w, in); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("sync encrypted artifact: %w", err)
	}
	return out.Close()
}

// decryptFile writes the plaintext of the age file src to dst. A wrong
// password is reported as ErrValidation.
//
//nolint:gosec // G304: both paths are built by the manager
func decryptFile(src, dst, password string) (err error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open encrypted artifact: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only

	r, err := age.Decrypt(in, identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) || errors.Is(err, age.ErrIncorrectIdentity) {
			return fmt.Errorf("%w: incorrect password", ErrValidation)
		}
		return fmt.Errorf("%w: decrypting artifact: %w", ErrIntegrity, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create plaintext: %w", err)
	}
	defer func() {
		if err != nil {
			out.Close()    //nolint:errcheck // already failing
			os.Remove(dst) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	if _, err = io.Copy(out, r); err != nil {
		return fmt.Errorf("%w: decrypting artifact: %w", ErrIntegrity, err)
	}
	return out.Close()
}
