package qdrant

import (
	"github.com/google/uuid"
	"github.com/poiesic/groundwork/core"
	pb "github.com/qdrant/go-client/qdrant"
)

const (
	payloadChunkID    = "chunk_id"
	payloadText       = "text"
	payloadDocumentID = "doc_id"
	payloadTitle      = "title"
	payloadOrdinal    = "chunk_index"
)

// pointID maps a chunk ID onto the UUID point ID Qdrant requires. The mapping
// is deterministic so re-ingestion overwrites the same point.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func chunkPayload(c core.Chunk) map[string]*pb.Value {
	return map[string]*pb.Value{
		payloadChunkID:    stringValue(c.ID),
		payloadText:       stringValue(c.Text),
		payloadDocumentID: stringValue(c.Metadata.DocumentID),
		payloadTitle:      stringValue(c.Metadata.Title),
		payloadOrdinal:    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Metadata.Ordinal)}},
	}
}

func chunkFromPayload(payload map[string]*pb.Value) core.Chunk {
	return core.Chunk{
		ID:   payload[payloadChunkID].GetStringValue(),
		Text: payload[payloadText].GetStringValue(),
		Metadata: core.ChunkMetadata{
			DocumentID: payload[payloadDocumentID].GetStringValue(),
			Title:      payload[payloadTitle].GetStringValue(),
			Ordinal:    int(payload[payloadOrdinal].GetIntegerValue()),
		},
	}
}

func toPoint(c *core.IndexedChunk) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(c.ID)},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: c.Vector},
			},
		},
		Payload: chunkPayload(c.Chunk),
	}
}
