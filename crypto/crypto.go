package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/utils/logger"
)

var (
	kmsClient *kms.Client
	localKey  []byte
	useKMS    bool
	initErr   error
	once      sync.Once
)

type cryptoObj struct {
	EncryptedData string `json:"encrypted_data"`
}

// InitEncryption picks the decryption backend from the configured key: an
// AWS KMS key ARN, or any other string as an AES-GCM passphrase.
func InitEncryption() error {
	once.Do(func() {
		key := strings.TrimSpace(viper.GetString(constants.EncryptionKey))
		if key == "" {
			initErr = errors.New("encryption key is not set")
			return
		}

		if strings.HasPrefix(key, "arn:aws:kms:") {
			cfg, err := config.LoadDefaultConfig(context.Background())
			if err != nil {
				initErr = fmt.Errorf("failed to load AWS config: %w", err)
				return
			}
			kmsClient = kms.NewFromConfig(cfg)
			useKMS = true
			logger.Debug("using AWS KMS for config decryption")
			return
		}

		// Local AES-GCM Mode with SHA-256 derived key
		hash := sha256.Sum256([]byte(key))
		localKey = hash[:]
	})

	return initErr
}

func Decrypt(cipherData []byte) (string, error) {
	if err := InitEncryption(); err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	if useKMS {
		out, err := kmsClient.Decrypt(context.Background(), &kms.DecryptInput{
			CiphertextBlob: cipherData,
		})
		if err != nil {
			return "", fmt.Errorf("decryption failed: %w", err)
		}
		return string(out.Plaintext), nil
	}

	return openLocal(localKey, cipherData)
}

func openLocal(key, cipherData []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := aead.NonceSize()
	if len(cipherData) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := cipherData[:nonceSize], cipherData[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

// DecryptJSONString opens an {"encrypted_data": "<base64>"} envelope.
func DecryptJSONString(encryptedObjStr string) (string, error) {
	obj := cryptoObj{}
	if err := json.Unmarshal([]byte(encryptedObjStr), &obj); err != nil {
		return "", fmt.Errorf("failed to unmarshal encrypted data: %v", err)
	}
	if obj.EncryptedData == "" {
		return "", fmt.Errorf("missing %s field", constants.EncryptedEnvelopeKey)
	}

	encryptedData, err := base64.StdEncoding.DecodeString(obj.EncryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 data: %v", err)
	}

	decrypted, err := Decrypt(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt data: %v", err)
	}

	return decrypted, nil
}
