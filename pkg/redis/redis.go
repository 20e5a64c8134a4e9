package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient estructura para manejar conexiones con Redis.
// Cumple el papel del localStorage del navegador en la versión original:
// persistencia local de mejor esfuerzo, clave-valor, por código de examen.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient crea una nueva instancia del cliente Redis
func NewRedisClient(addr, password string, db int) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()

	// Verificar conexión
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("❌ Error conectando a Redis: %v", err)
	}

	log.Println("✅ Conexión exitosa a Redis")

	return &RedisClient{
		client: rdb,
		ctx:    ctx,
	}
}

// Get obtiene el valor de una clave
func (r *RedisClient) Get(key string) (string, error) {
	value, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("clave %s no encontrada", key)
		}
		return "", fmt.Errorf("error obteniendo clave %s: %v", key, err)
	}
	return value, nil
}

// Set guarda un valor con TTL opcional (0 = sin expiración)
func (r *RedisClient) Set(key, value string, ttl time.Duration) error {
	return r.client.Set(r.ctx, key, value, ttl).Err()
}

// Delete elimina una o más claves
func (r *RedisClient) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(r.ctx, keys...).Err()
}

// AddToSet agrega miembros a un conjunto
func (r *RedisClient) AddToSet(key string, members ...interface{}) error {
	return r.client.SAdd(r.ctx, key, members...).Err()
}

// RemoveFromSet elimina miembros de un conjunto
func (r *RedisClient) RemoveFromSet(key string, members ...interface{}) error {
	return r.client.SRem(r.ctx, key, members...).Err()
}

// GetSetMembers obtiene todos los miembros de un conjunto
func (r *RedisClient) GetSetMembers(key string) ([]string, error) {
	members, err := r.client.SMembers(r.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("error obteniendo miembros de %s: %v", key, err)
	}
	return members, nil
}

// GetKeysByPattern obtiene las claves que coinciden con un patrón
func (r *RedisClient) GetKeysByPattern(pattern string) ([]string, error) {
	keys, err := r.client.Keys(r.ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("error buscando claves con patrón %s: %v", pattern, err)
	}
	return keys, nil
}

// Close cierra la conexión con Redis
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// HealthCheck verifica que Redis esté funcionando
func (r *RedisClient) HealthCheck() error {
	_, err := r.client.Ping(r.ctx).Result()
	if err != nil {
		return fmt.Errorf("redis health check failed: %v", err)
	}
	return nil
}
