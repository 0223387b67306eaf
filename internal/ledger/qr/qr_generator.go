package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-dispatch/internal/models"
)

// QRPayload is what a gate scanner reads back from a token's QR code. It
// carries just enough to locate the token and cross-check the challan pin.
type QRPayload struct {
	TokenID    string `json:"token_id"`
	TokenNo    string `json:"token_no"`
	OperatorID string `json:"operator_id"`
	ChallanPin string `json:"challan_pin"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// EncryptPayload builds the token's gate payload as an encrypted string,
// the exact text a scanner reads out of the QR image.
func (q *QRGenerator) EncryptPayload(token models.Token) (string, error) {
	payload := QRPayload{
		TokenID:    token.ID,
		TokenNo:    token.TokenNo,
		OperatorID: token.OperatorID,
		ChallanPin: token.ChallanPin,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders the token's gate payload as a PNG QR code.
// The payload is AES-encrypted so a printed token can't be forged from a
// photograph of another one.
func (q *QRGenerator) GenerateEncryptedQR(token models.Token) ([]byte, error) {
	encrypted, err := q.EncryptPayload(token)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecryptPayload reverses GenerateEncryptedQR's encryption for the scanned
// string a gate client submits.
func (q *QRGenerator) DecryptPayload(encrypted string) (*QRPayload, error) {
	data, err := decryptAES(encrypted, q.secret)
	if err != nil {
		return nil, err
	}

	var payload QRPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("qr payload too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])

	return data, nil
}
